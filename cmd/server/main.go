package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	logger "github.com/sirupsen/logrus"

	"github.com/shaun/figcode/server/internal/api"
	"github.com/shaun/figcode/server/internal/auth"
	"github.com/shaun/figcode/server/internal/config"
	"github.com/shaun/figcode/server/internal/logging"
	"github.com/shaun/figcode/server/internal/oauth"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFile := flag.String("config", "", "Path to config file (default ./config.yaml when present)")
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	flag.Parse()

	_ = godotenv.Load(".env")
	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatalf("[figcode] %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	oa := oauth.New(cfg.GitHub.OAuthClientID, cfg.GitHub.OAuthClientSecret)
	if !oa.Configured() {
		logger.Warn("[figcode] GITHUB_OAUTH_CLIENT_ID / GITHUB_OAUTH_CLIENT_SECRET not set; oauth actions will fail")
	}

	var gate func(http.Handler) http.Handler
	if cfg.Server.BasicAuthUser != "" {
		gate = auth.BasicAuth(cfg.Server.BasicAuthUser, cfg.Server.BasicAuthPassword)
	}
	router := api.NewRouter(api.NewHandler(oa), gate)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[figcode] server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		logger.Fatalf("[figcode] %v", err)
	case s := <-sig:
		logger.Infof("[figcode] received %s, shutting down", s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("[figcode] shutdown: %v", err)
	}
}
