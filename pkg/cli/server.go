package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	urfave "github.com/urfave/cli/v2"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20
	serverPortDefault         = 8080
)

var (
	portFlag = &urfave.IntFlag{
		Name:     "port",
		Usage:    "Port on which the server will listen",
		Value:    serverPortDefault,
		Required: false,
	}

	serverCmd = &urfave.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Start a local JSON API server over the stored datasets",
		Action:  cmdStartServer,
		Flags: []urfave.Flag{
			portFlag,
			debugFlag,
		},
	}
)

func cmdStartServer(c *urfave.Context) error {
	applyFlags(c)
	cfg := getConfig(c)
	port := c.Int(portFlag.Name)
	address := fmt.Sprintf("127.0.0.1:%d", port)

	mux := makeRouter(cfg.DB, cfg)
	s := &http.Server{
		Addr:           address,
		Handler:        mux,
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("error starting server", "error", err)
		}
	}()

	slog.Info("server started", "address", fmt.Sprintf("http://%s", address))

	<-done
	slog.Info("server stopping")

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func makeRouter(db *sql.DB, cfg *appConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/datasets", datasetsAPIHandler(db))
	mux.HandleFunc("/api/groups", groupsAPIHandler(db))
	mux.HandleFunc("/api/impact", impactAPIHandler(db, cfg))
	mux.HandleFunc("/api/fit", fitAPIHandler(db, cfg))
	return mux
}
