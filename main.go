package main

import (
	"context"
	"fixfur/internal/adapters/file"
	"fixfur/internal/adapters/generator"
	"fixfur/internal/adapters/handler"
	"fixfur/internal/adapters/liveness"
	"fixfur/internal/adapters/sender"
	"fixfur/internal/config"
	"fixfur/internal/core/domain"
	"fixfur/internal/core/domain/command"
	"fixfur/internal/core/service"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("bot terminated")
	}
}

func rootCmd() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:           "fixfur",
		Short:         "Telegram assistant for the FIX FUR atelier",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configDir)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return run(ctx, cfg)
		},
	}
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory containing config.toml")

	cmd.AddCommand(checkConfigCmd(&configDir))

	return cmd
}

func checkConfigCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and print the effective settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "model:               %s\n", cfg.Model)
			fmt.Fprintf(out, "transcription model: %s\n", cfg.TranscriptionModel)
			fmt.Fprintf(out, "base url:            %s\n", cfg.BaseURL)
			fmt.Fprintf(out, "port:                %d\n", cfg.Port)
			fmt.Fprintf(out, "log level:           %s\n", cfg.LogLevel)
			fmt.Fprintf(out, "workers:             %d\n", cfg.Workers)
			fmt.Fprintf(out, "media timeout:       %s\n", cfg.MediaTimeout)
			fmt.Fprintf(out, "upstream timeout:    %s\n", cfg.UpstreamTimeout)
			fmt.Fprintf(out, "handler timeout:     %s\n", cfg.HandlerTimeout)
			fmt.Fprintf(out, "chunk size:          %d\n", cfg.ChunkSize)

			return nil
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log.Info().Msg("starting fixfur bot...")

	zerolog.SetGlobalLevel(cfg.LogLevel)

	// assigned before polling starts, the handler only runs from b.Start
	var updates *handler.Update

	b, err := bot.New(cfg.TelegramToken, bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, u *models.Update) {
		updates.Handle(ctx, b, u)
	}))
	if err != nil {
		return fmt.Errorf("failed initializing telegram bot: %w", err)
	}

	s := sender.NewTelegram(b)
	pool := service.NewPool(cfg.Workers)

	registry := &command.Registry{}
	registry.Register(command.NewStart(s, domain.WelcomeText, "/start"))
	registry.Register(command.NewHelp(registry, s, "/help"))

	dispatcher := service.NewDispatcher(service.DispatcherParams{
		Registry:        registry,
		Builder:         service.NewBuilder(service.BuilderParams{SystemPrompt: cfg.SystemPrompt}),
		Completer:       generator.NewChat(cfg.APIKey, cfg.BaseURL, cfg.Model),
		Transcriber:     generator.NewWhisper(cfg.APIKey, cfg.BaseURL, cfg.TranscriptionModel),
		Fetcher:         file.NewTelegramFetcher(b),
		Sender:          s,
		Pool:            pool,
		ChunkSize:       cfg.ChunkSize,
		MediaTimeout:    cfg.MediaTimeout,
		UpstreamTimeout: cfg.UpstreamTimeout,
	})

	updates = handler.NewUpdate(dispatcher, cfg.HandlerTimeout)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return liveness.NewServer(cfg.Port).Run(ctx)
	})

	g.Go(func() error {
		log.Info().Str("model", cfg.Model).Int64("workers", pool.Workers()).Msg("bot listening")
		b.Start(ctx)
		log.Info().Msg("bot stopped polling, waiting for running turns")
		updates.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Msg("bye")
	return nil
}
