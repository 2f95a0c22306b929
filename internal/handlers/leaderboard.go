package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/fitrooms/internal/models"
	"github.com/Kerhoff/fitrooms/internal/service"
	"github.com/Kerhoff/fitrooms/internal/telegram"
)

// LeaderboardReader loads the current snapshot of the room bound to a chat.
type LeaderboardReader interface {
	LatestLeaderboard(ctx context.Context, chatID int64) (*models.Room, *models.LeaderboardSnapshot, error)
}

// LeaderboardHandler handles the /leaderboard command
type LeaderboardHandler struct {
	reader LeaderboardReader
	logger *logrus.Logger
}

// NewLeaderboardHandler creates a new leaderboard command handler
func NewLeaderboardHandler(reader LeaderboardReader, logger *logrus.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{reader: reader, logger: logger}
}

// Handle replies with the room's latest snapshot
func (h *LeaderboardHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	room, snapshot, err := h.reader.LatestLeaderboard(ctx, message.Chat.ID)

	var text string
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		text = "This chat is not linked to a room yet."
	case errors.Is(err, service.ErrSnapshotNotFound):
		text = fmt.Sprintf("No leaderboard for %s yet. Snapshots are built shortly after midnight (UTC+8).", room.Name)
	case err != nil:
		return fmt.Errorf("failed to load leaderboard: %w", err)
	default:
		text = telegram.FormatLeaderboard(room, snapshot)
	}

	if _, err := bot.Send(tgbotapi.NewMessage(message.Chat.ID, text)); err != nil {
		return fmt.Errorf("failed to send leaderboard: %w", err)
	}
	return nil
}
