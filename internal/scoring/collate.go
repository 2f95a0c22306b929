// Package scoring derives streaks, completion rates, team summaries and
// leaderboard rankings from settled rows. Everything here is pure: callers
// load the rows and persist the results.
package scoring

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var nameLanguage = language.MustParse("zh-Hans")

// NameCollator returns a collator ordering names the way Simplified Chinese
// readers expect. A collator is not safe for concurrent use, so callers take
// a fresh one per sort.
func NameCollator() *collate.Collator {
	return collate.New(nameLanguage)
}

// CompareNames compares two names with NameCollator.
func CompareNames(a, b string) int {
	return NameCollator().CompareString(a, b)
}
