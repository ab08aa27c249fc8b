package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/set-night/agentchat/internal/adk"
	"github.com/set-night/agentchat/internal/config"
	"github.com/set-night/agentchat/internal/domain"
	"github.com/set-night/agentchat/internal/handler"
	"github.com/set-night/agentchat/internal/middleware"
	"github.com/set-night/agentchat/internal/service"
	"github.com/set-night/agentchat/internal/telegram"
	"github.com/set-night/agentchat/internal/telemetry"
	"github.com/set-night/agentchat/internal/upload"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when configured, the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	st, migrations, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.AutoMigrate {
		if err := st.Migrate(ctx, migrations); err != nil {
			return err
		}
	}

	metrics := telemetry.NewMetrics(cfg.MetricsEnabled)
	tracer, err := telemetry.NewTracer(ctx, telemetry.TracingConfig{
		Exporter:       cfg.TracingExporter,
		Endpoint:       cfg.OTLPEndpoint,
		SampleRate:     cfg.TracingSampleRate,
		ServiceName:    config.ServiceName,
		ServiceVersion: config.ServiceVersion,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown", "error", err)
		}
	}()

	agents := make(map[domain.Platform]string, len(domain.Platforms))
	for _, p := range domain.Platforms {
		agents[p] = cfg.AgentFor(p)
	}

	runtime := adk.NewClient(cfg.RuntimeURL, cfg.RuntimeTimeout)
	chatService := service.NewChatService(st, runtime, service.ChatOptions{
		Agents:           agents,
		FallbackResponse: cfg.FallbackResponse,
		Metrics:          metrics,
		Tracer:           tracer,
	})
	sessionService := service.NewSessionService(st)
	parser := upload.NewParser(cfg.MaxUploadBytes)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Validator = handler.NewValidator()
	e.Use(
		echomw.RequestID(),
		middleware.RequestLogger(metrics),
		middleware.RecoverHTTP(),
		middleware.RateLimitHTTP(middleware.NewRateLimiterStore(cfg.RateLimit)),
	)
	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	handler.New(handler.Deps{
		Chat:           chatService,
		Sessions:       sessionService,
		Parser:         parser,
		DB:             st,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}).RegisterRoutes(e, cfg.APIPrefix)

	if cfg.TelegramEnabled() {
		tb, err := telegram.New(telegram.Deps{
			Token:          cfg.TelegramBotToken,
			Platform:       domain.Platform(cfg.TelegramPlatform),
			Chat:           chatService,
			Sessions:       sessionService,
			Parser:         parser,
			RateLimiter:    middleware.NewRateLimiterStore(cfg.RateLimit),
			MaxUploadBytes: cfg.MaxUploadBytes,
			OpsChatID:      cfg.LogTelegramChatID,
			OpsTopicID:     cfg.LogTopicError,
		})
		if err != nil {
			return err
		}
		go tb.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		slog.Info("http server listening", "addr", addr, "prefix", cfg.APIPrefix)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	slog.Info("server stopped gracefully")
	return nil
}
