// Package telegram runs the admin notifier bot: it pushes new complaints to
// the admin chat and accepts ban/unban commands from it.
package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"omilia/backend/internal/models"
	"omilia/backend/internal/moderation"
	"omilia/backend/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier is the admin-facing bot. It implements complaint.Notifier.
type Notifier struct {
	BotAPI     *tgbotapi.BotAPI
	Storage    storage.Storage
	Moderation *moderation.Service

	adminChat int64
}

// NewNotifier authorizes the bot. adminChat is the only chat the bot talks
// to or accepts commands from.
func NewNotifier(token string, adminChat int64, s storage.Storage, m *moderation.Service) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("✅ Authorized on account %s", bot.Self.UserName)

	return &Notifier{BotAPI: bot, Storage: s, Moderation: m, adminChat: adminChat}, nil
}

// ComplaintCreated pushes a freshly created complaint to the admin chat.
func (n *Notifier) ComplaintCreated(c models.Complaint) {
	text := fmt.Sprintf(
		"🚨 Complaint #%d\nreporter: %s\ntarget: %s\nreason: %s",
		c.ID, c.ReporterID, c.TargetUserID, c.Reason,
	)
	if c.MessageID != "" {
		text += "\nmessage: " + c.MessageID
	}
	if _, err := n.BotAPI.Send(tgbotapi.NewMessage(n.adminChat, text)); err != nil {
		log.Printf("ERROR: failed to push complaint %d to admin chat: %v", c.ID, err)
	}
}

// Run consumes updates until the process exits. Only commands coming from
// the admin chat are honored.
func (n *Notifier) Run() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	for update := range n.BotAPI.GetUpdatesChan(u) {
		msg := update.Message
		if msg == nil || msg.Chat.ID != n.adminChat || !msg.IsCommand() {
			continue
		}
		n.reply(n.handleCommand(msg))
	}
}

func (n *Notifier) handleCommand(msg *tgbotapi.Message) string {
	args := strings.Fields(msg.CommandArguments())

	switch msg.Command() {
	case "ban":
		if len(args) < 1 {
			return "Usage: /ban <user_id> [duration_in_hours]"
		}
		user, errText := n.lookupUser(args[0])
		if errText != "" {
			return errText
		}
		var duration time.Duration
		if len(args) > 1 {
			hours, err := strconv.Atoi(args[1])
			if err != nil {
				return "Invalid duration. Please provide an integer number of hours."
			}
			duration = time.Duration(hours) * time.Hour
		}
		if err := n.Moderation.Block(context.Background(), user, duration); err != nil {
			return "Failed to ban: " + err.Error()
		}
		return fmt.Sprintf("User %s has been banned.", user.Username)

	case "unban":
		if len(args) != 1 {
			return "Usage: /unban <user_id>"
		}
		user, errText := n.lookupUser(args[0])
		if errText != "" {
			return errText
		}
		if err := n.Moderation.Unblock(context.Background(), user); err != nil {
			return "Failed to unban: " + err.Error()
		}
		return fmt.Sprintf("User %s has been unbanned.", user.Username)

	default:
		return "Commands: /ban <user_id> [hours], /unban <user_id>"
	}
}

func (n *Notifier) lookupUser(rawID string) (*models.User, string) {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return nil, "Invalid user ID."
	}
	user, err := n.Storage.UserByID(uint(id))
	if err != nil {
		return nil, "User not found."
	}
	return user, ""
}

func (n *Notifier) reply(text string) {
	if _, err := n.BotAPI.Send(tgbotapi.NewMessage(n.adminChat, text)); err != nil {
		log.Printf("ERROR: failed to send admin reply: %v", err)
	}
}
