package app

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/KevinTran99/MovieContest/internal/domain"
)

// Sender is the part of *tgbotapi.BotAPI the publisher uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Publisher notifies contest creators about events in their contests. A
// Telegram user's private chat ID equals the user ID.
type Publisher struct {
	Bot Sender
	Now func() time.Time
}

func (p Publisher) Publish(ctx context.Context, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	text := eventText(event, now)
	if text == "" {
		return nil
	}
	if _, err := p.Bot.Send(tgbotapi.NewMessage(int64(event.Contest.Creator), text)); err != nil {
		return fmt.Errorf("notify creator %s: %w", event.Contest.Creator, err)
	}
	return nil
}

func eventText(event domain.Event, now time.Time) string {
	switch event.Kind {
	case domain.EventContestStarted:
		return fmt.Sprintf("📣 Contest «%s» is open, %s.", event.Contest.Name, formatDeadline(event.Deadline, now))
	case domain.EventVoteCast:
		return fmt.Sprintf("🗳 New vote in «%s» for «%s».", event.Contest.Name, event.Title)
	case domain.EventContestEnded:
		return fmt.Sprintf("🏁 Contest «%s» finished.\nResult: %s", event.Contest.Name, event.Winner)
	default:
		return ""
	}
}
