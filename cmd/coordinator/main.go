package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/kmcbride3/discordflow/internal/action"
	"github.com/kmcbride3/discordflow/internal/auth"
	"github.com/kmcbride3/discordflow/internal/coordinator"
	"github.com/kmcbride3/discordflow/internal/engine"
	"github.com/kmcbride3/discordflow/internal/gateway/local"
	"github.com/kmcbride3/discordflow/internal/rpc"
	"github.com/kmcbride3/discordflow/internal/session"
	"github.com/kmcbride3/discordflow/internal/trigger"
	"github.com/kmcbride3/discordflow/internal/workflow"
)

func main() {
	_ = godotenv.Load()

	logger := newLogger(os.Getenv("LOG_LEVEL"))
	secret := os.Getenv("RPC_SECRET")
	if secret == "" {
		logger.Error("RPC_SECRET is required")
		os.Exit(1)
	}
	addr := envOr("LISTEN_ADDR", ":8787")

	sess := session.New(logger)
	if v := os.Getenv("BASE_URL"); v != "" {
		sess.SetBaseURL(v)
	}
	if v := os.Getenv("API_KEY"); v != "" {
		sess.SetAPIKey(v)
	}

	gw := local.New(logger)
	registry := trigger.NewRegistry(logger, gw.RegisterCommands)
	registry.SetBaseCommands(engine.BuiltinCommandSpecs())
	client := workflow.NewClient(logger)
	invoker := workflow.NewInvoker(logger, sess, gw, client, registry)
	eng := engine.New(logger, sess, registry, gw, invoker)
	exec := action.NewExecutor(logger, sess, gw)
	coord := coordinator.New(logger, sess, gw, registry, eng, invoker, exec)
	defer coord.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(auth.JWTMiddleware(secret, func(c echo.Context) bool {
		return c.Path() == "/healthz"
	}))
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "ok",
			"phase":  sess.Phase().String(),
		})
	})
	rpc.NewServer(logger, coord).Register(e)

	go func() {
		logger.Info("coordinator listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", slog.Any("error", err))
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
