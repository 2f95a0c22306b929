package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/fitrooms/internal/models"
)

// Announcer posts leaderboard snapshots to the chat bound to a room.
type Announcer struct {
	sender Sender
	logger *logrus.Logger
}

// NewAnnouncer creates an Announcer that sends through sender.
func NewAnnouncer(sender Sender, logger *logrus.Logger) *Announcer {
	return &Announcer{sender: sender, logger: logger}
}

// Announce sends snapshot to room's chat. Rooms without a chat are skipped.
func (a *Announcer) Announce(ctx context.Context, room *models.Room, snapshot *models.LeaderboardSnapshot) error {
	if room.TelegramChatID == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(*room.TelegramChatID, FormatLeaderboard(room, snapshot))
	if _, err := a.sender.Send(msg); err != nil {
		return fmt.Errorf("failed to send leaderboard: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"room_id":       room.ID,
		"chat_id":       *room.TelegramChatID,
		"snapshot_date": snapshot.SnapshotDate,
	}).Info("Leaderboard announced")
	return nil
}

// FormatLeaderboard renders a snapshot as plain text.
func FormatLeaderboard(room *models.Room, snapshot *models.LeaderboardSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 %s leaderboard, %s\n", room.Name, snapshot.SnapshotDate)

	if len(snapshot.Ranking) == 0 {
		b.WriteString("\nNo teams yet.")
		return b.String()
	}

	b.WriteString("\n")
	for i, e := range snapshot.Ranking {
		fmt.Fprintf(&b, "%d. %s: %d pts (7d: %d, members: %d)\n",
			i+1, e.TeamName, e.TotalPoints, e.PointsLast7Days, e.MemberCount)
	}
	return strings.TrimRight(b.String(), "\n")
}
