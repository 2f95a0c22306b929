package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Sender is the part of the bot API used to deliver messages.
// *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Router handles message routing and command parsing
type Router struct {
	logger   *logrus.Logger
	handlers map[string]CommandHandler
}

// CommandHandler defines the interface for command handlers
type CommandHandler interface {
	Handle(bot Sender, message *tgbotapi.Message, args []string) error
}

// NewRouter creates a new message router
func NewRouter(logger *logrus.Logger) *Router {
	return &Router{
		logger:   logger,
		handlers: make(map[string]CommandHandler),
	}
}

// RegisterCommand registers a command handler
func (r *Router) RegisterCommand(command string, handler CommandHandler) {
	r.handlers[command] = handler
	r.logger.Debugf("Registered command: %s", command)
}

// HandleMessage dispatches command messages to their handler
func (r *Router) HandleMessage(bot Sender, message *tgbotapi.Message) {
	if message.Text == "" || !message.IsCommand() {
		return
	}

	fields := logrus.Fields{
		"chat_id":    message.Chat.ID,
		"message_id": message.MessageID,
	}
	if message.From != nil {
		fields["user_id"] = message.From.ID
	}

	command := message.Command()
	args := strings.Fields(message.CommandArguments())
	fields["command"] = command

	handler, exists := r.handlers[command]
	if !exists {
		r.logger.WithFields(fields).Debug("Unknown command")
		r.reply(bot, message.Chat.ID, "❓ Unknown command. Use /help to see available commands.")
		return
	}

	if err := handler.Handle(bot, message, args); err != nil {
		r.logger.WithFields(fields).WithError(err).Error("Command handler failed")
		r.reply(bot, message.Chat.ID, "❌ An error occurred while processing your command. Please try again.")
	}
}

func (r *Router) reply(bot Sender, chatID int64, text string) {
	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.logger.WithError(err).Warn("Failed to send reply")
	}
}
