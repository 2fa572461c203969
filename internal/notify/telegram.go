// Package notify pushes finished interview reports to recruiters.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/aegisforge/internal/report"
)

const maxTelegramMessage = 4096

// Telegram sends a report summary to a fixed recruiter chat. Delivery is
// best effort; the session outcome never depends on it.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates the notifier. An empty token is a configuration
// error; callers should simply not construct one.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// NotifyReport pushes a compact summary of the finished report.
func (t *Telegram) NotifyReport(_ context.Context, fsir *report.FSIR) error {
	for _, part := range splitMessage(summarize(fsir)) {
		msg := tgbotapi.NewMessage(t.chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := t.bot.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := t.bot.Send(msg); err != nil {
				return fmt.Errorf("send report summary: %w", err)
			}
		}
	}
	slog.Info("report summary delivered", "candidate_id", fsir.CandidateID, "chat_id", t.chatID)
	return nil
}

func summarize(fsir *report.FSIR) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Interview complete*\n")
	fmt.Fprintf(&b, "Candidate: %s\n", fsir.CandidateID)
	fmt.Fprintf(&b, "Role: %s\n", fsir.RoleScreened)
	fmt.Fprintf(&b, "Decision: *%s* (confidence: %s)\n", fsir.Decision, fsir.OverallConfidence)
	fmt.Fprintf(&b, "Score: %d/100\n", fsir.DQIBreakdown.Score)
	for _, signal := range fsir.IntegritySignals.SignalsObserved {
		fmt.Fprintf(&b, "- %s\n", signal)
	}
	return b.String()
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
