// Package telegram runs the quiz over the Telegram Bot API: commands start a
// quiz, questions go out as quiz polls and poll answers come back as events.
package telegram

import (
	"context"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"vocab-quiz-service/internal/app"
	"vocab-quiz-service/internal/domain"
	"vocab-quiz-service/internal/messages"
)

// Sender is the part of *tgbotapi.BotAPI the bot sends through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Config struct {
	DefaultCount  int
	MaxConcurrent int
	PollTimeout   int // long-poll timeout in seconds
}

type Bot struct {
	sender  Sender
	engine  *app.QuizEngine
	catalog *messages.Catalog
	logger  *slog.Logger
	cfg     Config
}

func NewBot(sender Sender, engine *app.QuizEngine, catalog *messages.Catalog, logger *slog.Logger, cfg Config) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultCount <= 0 {
		cfg.DefaultCount = app.DefaultQuestionCount
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 16
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60
	}
	return &Bot{sender: sender, engine: engine, catalog: catalog, logger: logger, cfg: cfg}
}

// Run long-polls api for updates until ctx is done. Each update is handled as
// its own unit of work; the engine serializes events of the same user.
func (b *Bot) Run(ctx context.Context, api *tgbotapi.BotAPI) error {
	b.logger.Info("bot authorised", "account", api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollTimeout
	u.AllowedUpdates = []string{"message", "poll_answer"}
	updates := api.GetUpdatesChan(u)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.MaxConcurrent)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case update, ok := <-updates:
			if !ok {
				break loop
			}
			g.Go(func() error {
				b.HandleUpdate(gctx, update)
				return nil
			})
		}
	}

	api.StopReceivingUpdates()
	return g.Wait()
}

// HandleUpdate dispatches a single Telegram update.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.PollAnswer != nil:
		// in private chats the chat id is the user id
		chatID := update.PollAnswer.User.ID
		intents, err := b.engine.OnAnswer(userKey(chatID), update.PollAnswer.OptionIDs)
		b.deliver(chatID, intents, err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch cmd := msg.Command(); cmd {
	case "start", "help":
		b.sendText(chatID, b.catalog.Help())
	case "random", "latest":
		mode, _ := domain.ParseMode(cmd)
		count, err := app.ParseRequestCount(msg.CommandArguments(), b.cfg.DefaultCount)
		if err != nil {
			b.deliver(chatID, nil, err)
			return
		}
		b.logger.Debug("quiz requested", "user_id", chatID, "mode", mode, "count", count)
		intents, err := b.engine.OnStart(ctx, userKey(chatID), count, mode)
		b.deliver(chatID, intents, err)
	case "stop":
		b.engine.Stop(userKey(chatID))
	default:
		b.sendText(chatID, b.catalog.Help())
	}
}

func (b *Bot) deliver(chatID int64, intents []domain.Intent, err error) {
	if err != nil {
		b.logger.Info("quiz request failed", "user_id", chatID, "error", err)
		b.sendText(chatID, b.catalog.Error(err))
		return
	}
	for _, in := range intents {
		switch v := in.(type) {
		case domain.PollIntent:
			b.sendPoll(chatID, v)
		default:
			if text, ok := b.catalog.Text(in); ok {
				b.sendText(chatID, text)
			}
		}
	}
}

func (b *Bot) sendPoll(chatID int64, p domain.PollIntent) {
	poll := tgbotapi.NewPoll(chatID, b.catalog.Question(p), p.Question.Options...)
	poll.Type = "quiz"
	poll.IsAnonymous = false
	poll.CorrectOptionID = int64(p.Question.CorrectIndex)
	if _, err := b.sender.Send(poll); err != nil {
		b.logger.Warn("send poll", "user_id", chatID, "question", p.Number, "error", err)
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	if _, err := b.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("send message", "user_id", chatID, "error", err)
	}
}

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
