package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"vocab-quiz-service/internal/transport/telegram"
)

// NewBotCmd runs the Telegram front end.
func NewBotCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run quizzes as Telegram polls",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), *configPath)
		},
	}
}

func runBot(ctx context.Context, configPath string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token not configured")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("connect telegram: %w", err)
	}

	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	go rt.runJanitor(ctx)

	bot := telegram.NewBot(api, rt.engine, rt.catalog, logger, telegram.Config{
		DefaultCount:  rt.defaultCount(),
		MaxConcurrent: cfg.Telegram.MaxConcurrent,
		PollTimeout:   cfg.Telegram.PollTimeout,
	})
	return bot.Run(ctx, api)
}
