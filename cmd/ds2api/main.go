package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ds2api/internal/config"
	"ds2api/internal/server"
	"ds2api/internal/webui"
)

func main() {
	// .env is optional; real env vars always win.
	_ = godotenv.Load()

	app := server.NewApp()

	if autoProvisionWebUI() {
		if err := webui.NewHandler().MaterializeStaticDir(); err != nil {
			config.Logger.Warn("[webui] static provisioning failed", "error", err)
		}
	}

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           app.Router,
		ReadHeaderTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		config.Logger.Info("[server] listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		config.Logger.Info("[server] shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			config.Logger.Error("[server] shutdown failed", "error", err)
			os.Exit(1)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			config.Logger.Error("[server] listen failed", "error", err)
			os.Exit(1)
		}
	}
}

func autoProvisionWebUI() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DS2API_AUTO_BUILD_WEBUI"))) {
	case "false", "0", "no", "off":
		return false
	}
	return true
}
