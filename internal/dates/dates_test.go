package dates

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"2024-01-01", false},
		{"2024-02-29", false},
		{"2023-02-29", true},
		{"2024-1-01", true},
		{"2024-01-01T00:00:00Z", true},
		{"", true},
	}
	for _, tc := range cases {
		_, err := Parse(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("Parse(%q): wantErr=%v got=%v", tc.in, tc.wantErr, err)
		}
	}
}

func TestInZoneCrossesMidnight(t *testing.T) {
	instant := time.Date(2024, 1, 1, 17, 30, 0, 0, time.UTC)
	got := InZone(instant, ReferenceZone)
	if got.String() != "2024-01-02" {
		t.Fatalf("InZone: want=2024-01-02 got=%s", got)
	}
}

func TestDaysUntilAcrossMonth(t *testing.T) {
	a := MustParse("2024-02-27")
	b := MustParse("2024-03-01")
	if got := a.DaysUntil(b); got != 3 {
		t.Fatalf("DaysUntil: want=3 got=%d", got)
	}
	if got := a.AddDays(3); !got.Equal(b) {
		t.Fatalf("AddDays: want=%s got=%s", b, got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		D Date  `json:"d"`
		P *Date `json:"p"`
	}
	raw, err := json.Marshal(wrapper{D: MustParse("2024-05-06")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"d":"2024-05-06","p":null}` {
		t.Fatalf("marshal: got=%s", raw)
	}
	var back wrapper
	if err := json.Unmarshal([]byte(`{"d":"2024-05-07"}`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.D.String() != "2024-05-07" {
		t.Fatalf("unmarshal: got=%s", back.D)
	}
	if err := json.Unmarshal([]byte(`{"d":"05/07/2024"}`), &back); err == nil {
		t.Fatalf("unmarshal bad date: expected error")
	}
}

func TestScan(t *testing.T) {
	var d Date
	if err := d.Scan(time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)); err != nil || d.String() != "2024-03-09" {
		t.Fatalf("scan time: got=%s err=%v", d, err)
	}
	if err := d.Scan([]byte("2024-03-10")); err != nil || d.String() != "2024-03-10" {
		t.Fatalf("scan bytes: got=%s err=%v", d, err)
	}
	if err := d.Scan(42); err == nil {
		t.Fatalf("scan int: expected error")
	}
}

func TestAtUsesZone(t *testing.T) {
	lock := MustParse("2024-01-01").At(10, 0, ReferenceZone)
	if !lock.Equal(time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)) {
		t.Fatalf("At: got=%s", lock.UTC())
	}
}

func TestLoadLocationFallback(t *testing.T) {
	loc := LoadLocation("Not/AZone")
	instant := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, offset := instant.In(loc).Zone()
	if offset != 8*60*60 {
		t.Fatalf("fallback offset: want=%d got=%d", 8*60*60, offset)
	}
}
