// Command voxbridge-agent joins a realtime room as the voice concierge and
// bridges the frontend data channel to the Gemini-backed agent pipeline.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/genai"

	"github.com/voxbridge/voxbridge/internal/dotenv"
	"github.com/voxbridge/voxbridge/pkg/agent"
	"github.com/voxbridge/voxbridge/pkg/cards"
	"github.com/voxbridge/voxbridge/pkg/config"
	"github.com/voxbridge/voxbridge/pkg/kb"
	"github.com/voxbridge/voxbridge/pkg/llm"
	"github.com/voxbridge/voxbridge/pkg/mail"
	"github.com/voxbridge/voxbridge/pkg/maps"
	"github.com/voxbridge/voxbridge/pkg/room"
	"github.com/voxbridge/voxbridge/pkg/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "voxbridge-agent:", err)
		os.Exit(1)
	}
}

func run() error {
	if err := dotenv.Load(); err != nil {
		return err
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("create genai client: %w", err)
	}

	if err := store.Migrate(ctx, cfg.DatabaseURL); err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	sender, err := mail.NewSender(mail.SenderConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		From:     cfg.SenderEmail,
		Password: cfg.SenderPassword,
		Timezone: cfg.InviteTimezone,
	}, logger)
	if err != nil {
		return err
	}

	client, err := room.Dial(ctx, room.ClientConfig{
		URL:          cfg.RoomURL,
		APIKey:       cfg.RoomAPIKey,
		RoomName:     cfg.RoomName,
		Identity:     cfg.AgentIdentity,
		PingInterval: cfg.PingInterval,
		WriteTimeout: cfg.WriteTimeout,
		QueueSize:    cfg.OutboundQueue,
	}, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	sessions := store.New(pool, logger)
	controller := agent.NewController(agent.Deps{
		Logger:    logger,
		Publisher: client,
		KB:        kb.NewStore(pool, kb.NewGenAIEmbedder(genaiClient, cfg.EmbeddingModel), logger),
		Cards:     cards.NewGenerator(genaiClient, cfg.CardModel, logger),
		Maps:      maps.NewClient(cfg.GoogleMapsKey, logger),
		Mail:      sender,
		Recorder:  sessions,
		Config: agent.Config{
			KBFetchSize:         cfg.KBFetchSize,
			LocationTimeout:     cfg.LocationTimeout,
			ContactPreviewDelay: cfg.ContactPreviewDelay,
			ContactSubmitDelay:  cfg.ContactSubmitDelay,
		},
	})

	runtime := llm.NewRuntime(genaiClient, cfg.ResponseModel, controller.Tools(), sessions, logger)
	controller.AttachRuntime(runtime)
	if err := controller.Rebuild(ctx); err != nil {
		return err
	}

	sessionCtx, cancelSession := context.WithCancel(ctx)
	defer cancelSession()

	tracker := room.NewTracker()
	unregister := tracker.Register(cfg.RoomName, cancelSession)

	if err := sessions.StartSession(ctx, cfg.RoomName); err != nil {
		logger.Warn("session record failed", "error", err)
	}

	logger.Info("agent joined room", "room", cfg.RoomName, "identity", cfg.AgentIdentity)

	runErr := client.Run(sessionCtx, controller.HandleData)
	unregister()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancelShutdown()
	if !tracker.Wait(shutdownCtx) {
		logger.Warn("session drain timed out", "grace", cfg.ShutdownGracePeriod)
	}
	if err := sessions.EndSession(shutdownCtx); err != nil {
		logger.Warn("session close failed", "error", err)
	}

	if runErr != nil {
		return fmt.Errorf("room session ended: %w", runErr)
	}
	logger.Info("agent shut down cleanly", "room", cfg.RoomName)
	return nil
}
