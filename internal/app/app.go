package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/KevinTran99/MovieContest/internal/domain"
	"github.com/KevinTran99/MovieContest/internal/registry"
	"github.com/KevinTran99/MovieContest/internal/session"
)

// Bot is the part of *tgbotapi.BotAPI the app uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type App struct {
	bot      Bot
	registry *registry.Registry
	sessions *session.Manager
	logger   *slog.Logger
	now      func() time.Time
}

func New(bot Bot, reg *registry.Registry, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		bot:      bot,
		registry: reg,
		sessions: session.NewManager(),
		logger:   logger,
		now:      time.Now,
	}
}

// ErrUpdatesClosed is returned by Run when Telegram stops delivering updates.
var ErrUpdatesClosed = errors.New("updates channel closed")

// Run handles updates until ctx is done or the update channel closes.
func (a *App) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return nil

		case update, ok := <-updates:
			if !ok {
				return ErrUpdatesClosed
			}
			a.handleUpdate(ctx, update)
		}
	}
}

func (a *App) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		a.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		a.handleCallback(ctx, update.CallbackQuery)
	case update.PreCheckoutQuery != nil:
		a.handlePreCheckout(ctx, update.PreCheckoutQuery)
	}
}

func (a *App) reply(chatID int64, text string) {
	if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		a.logger.Error("send message failed", "chat_id", chatID, "error", err)
	}
}

// replyError answers with the user-facing text for err. Errors that are not
// registry rejections are logged.
func (a *App) replyError(chatID int64, op string, err error) {
	text := describeError(err)
	if text == genericErrorText {
		a.logger.Error(op+" failed", "chat_id", chatID, "error", err)
	}
	a.reply(chatID, text)
}

// ---------- Updates ----------

func (a *App) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	if !msg.IsCommand() {
		if strings.TrimSpace(msg.Text) != "" {
			a.reply(msg.Chat.ID, "Send /help to see what I can do.")
		}
		return
	}

	caller := domain.Identity(msg.From.ID)
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "help":
		a.reply(chatID, helpText)

	case "my_id":
		a.reply(chatID, fmt.Sprintf("Your ID: %s\nShare it so others can address your contests.", caller))

	case "my_contests":
		contests, err := a.registry.ContestsByCreator(ctx, caller)
		if err != nil {
			a.replyError(chatID, "my_contests", err)
			return
		}
		a.reply(chatID, formatContests(contests, a.now()))

	default:
		a.handleCall(ctx, msg, caller)
	}
}

func (a *App) handleCall(ctx context.Context, msg *tgbotapi.Message, caller domain.Identity) {
	chatID := msg.Chat.ID

	call, err := parseCall(caller, msg.Command(), msg.CommandArguments())
	if err != nil {
		a.reply(chatID, describeError(err))
		return
	}

	res, err := a.registry.Dispatch(ctx, caller, call)
	if err != nil {
		a.replyError(chatID, call.Method, err)
		return
	}

	switch call.Method {
	case registry.MethodAddContest:
		a.reply(chatID, fmt.Sprintf(
			"Contest «%s» created 🎉\nAdd movies: /add_movie %s | %s | Title\nShare your ID %s with voters.",
			call.Name, caller, call.Name, caller))

	case registry.MethodAddMovie:
		a.reply(chatID, fmt.Sprintf("Movie «%s» added to «%s» ✅", call.Title, call.Name))

	case registry.MethodGetMovies:
		if err := a.sendMovies(ctx, chatID, call.Creator, call.Name); err != nil {
			a.replyError(chatID, "movies", err)
		}

	case registry.MethodStartContest:
		c, err := a.registry.Contest(ctx, call.Creator, call.Name)
		if err != nil {
			a.replyError(chatID, "start_contest", err)
			return
		}
		a.reply(chatID, fmt.Sprintf("Contest «%s» started, %s.\nVoters: /movies %s | %s",
			call.Name, formatDeadline(c.Deadline, a.now()), call.Creator, call.Name))

	case registry.MethodVoteMovie:
		a.reply(chatID, fmt.Sprintf("Vote recorded for «%s» ✅", call.Title))

	case registry.MethodEndContest:
		a.reply(chatID, fmt.Sprintf("Contest «%s» finished.\nResult: %s", call.Name, res.Winner))

	case registry.MethodGetWinner:
		a.reply(chatID, fmt.Sprintf("Result of «%s»: %s", call.Name, res.Winner))
	}
}

// sendMovies shows the movie list and, while voting is open, one vote
// button per movie. The sent message is bound to the contest so its
// buttons keep referring to it whatever the chat opens later.
func (a *App) sendMovies(ctx context.Context, chatID int64, creator domain.Identity, name string) error {
	c, err := a.registry.Contest(ctx, creator, name)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, formatMovies(c, a.now()))
	voting := c.Status == domain.StatusOngoing && len(c.Movies) > 0
	if voting {
		var rows [][]tgbotapi.InlineKeyboardButton
		for i, m := range c.Movies {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ "+m.Title, fmt.Sprintf("vote:%d", i)),
			))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	sent, err := a.bot.Send(msg)
	if err != nil {
		return err
	}
	if voting {
		a.sessions.BindBoard(chatID, sent.MessageID, c.Key())
	}
	return nil
}

func (a *App) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID
	voter := domain.Identity(cq.From.ID)

	if _, err := a.bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		a.logger.Warn("answer callback failed", "error", err)
	}

	if !strings.HasPrefix(cq.Data, "vote:") {
		return
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(cq.Data, "vote:"))
	if err != nil || idx < 0 {
		return
	}

	key, ok := a.sessions.Board(chatID, messageID)
	if !ok {
		a.reply(chatID, "These buttons have expired. Open the contest again: /movies creatorID | Name")
		return
	}

	// Movies are frozen once voting opens, so the index is stable.
	movies, err := a.registry.GetMovies(ctx, key.Creator, key.Name)
	if err != nil {
		a.replyError(chatID, "vote button", err)
		return
	}
	if idx >= len(movies) {
		a.reply(chatID, describeError(domain.ErrCandidateNotFound))
		return
	}
	title := movies[idx].Title

	call := registry.Call{Method: registry.MethodVoteMovie, Creator: key.Creator, Name: key.Name, Title: title}
	if _, err := a.registry.Dispatch(ctx, voter, call); err != nil {
		if errors.Is(err, domain.ErrInvalidStatus) || errors.Is(err, domain.ErrVotingClosed) {
			a.sessions.ForgetBoard(chatID, messageID)
		}
		a.replyError(chatID, "vote button", err)
		return
	}
	a.reply(chatID, fmt.Sprintf("Vote recorded for «%s» in «%s» ✅", title, key.Name))
}

// handlePreCheckout refuses every payment. The registry decides; the bot
// only relays its answer.
func (a *App) handlePreCheckout(ctx context.Context, q *tgbotapi.PreCheckoutQuery) {
	var caller domain.Identity
	if q.From != nil {
		caller = domain.Identity(q.From.ID)
	}

	call := registry.Call{Method: "pre_checkout:" + q.InvoicePayload, Value: int64(q.TotalAmount)}
	if _, err := a.registry.Dispatch(ctx, caller, call); !errors.Is(err, domain.ErrPaymentRejected) {
		a.logger.Warn("pre-checkout without amount", "caller", caller, "error", err)
	}

	answer := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: q.ID,
		OK:                 false,
		ErrorMessage:       describeError(domain.ErrPaymentRejected),
	}
	if _, err := a.bot.Request(answer); err != nil {
		a.logger.Error("answer pre-checkout failed", "error", err)
	}
}
