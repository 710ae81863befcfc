package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lonesomenomore/lsnm/internal/api"
	"github.com/lonesomenomore/lsnm/internal/composer"
	"github.com/lonesomenomore/lsnm/internal/config"
	"github.com/lonesomenomore/lsnm/internal/conversation"
	"github.com/lonesomenomore/lsnm/internal/profile"
	"github.com/lonesomenomore/lsnm/internal/proxy"
	"github.com/lonesomenomore/lsnm/internal/storage"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "lsnm.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// openBackend opens the store and profile manager shared by serve, mcp and
// the local commands.
func openBackend(cfg config.Config) (*storage.Store, *profile.Manager, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}
	profiles := profile.NewManager(store)
	if cfg.Storage.SeedDemo {
		n, err := profiles.SeedDemoIfEmpty()
		if err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("seeding demo profiles: %w", err)
		}
		if n > 0 {
			slog.Info("seeded demo profiles", "count", n)
		}
	}
	return store, profiles, nil
}

func newResolver(cfg config.Config, profiles composer.ProfileGetter) *composer.Resolver {
	return &composer.Resolver{
		Profiles:    profiles,
		BaseDir:     cfg.Prompt.BaseDir,
		FileTimeout: cfg.Prompt.FileTimeout,
	}
}

func newProxyClient(cfg config.Config) *proxy.Client {
	return proxy.NewClient(cfg.Proxy.OpenRouterAPIKey,
		proxy.WithReferer(cfg.Proxy.AppURL),
		proxy.WithTitle(cfg.Proxy.AppTitle),
	)
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.Log)
	logger.Info("starting lsnm", "version", version)

	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	if serverRunning(cfg) {
		if pid, err := readPIDFile(pidPath); err == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on %s", cfg.Server.Addr())
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	store, profiles, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", "error", err)
		}
	}()

	handler := api.NewRouter(api.Deps{
		Store:             store,
		Profiles:          profiles,
		Resolver:          newResolver(cfg, profiles),
		Recorder:          conversation.NewRecorder(store),
		Proxy:             newProxyClient(cfg),
		Logger:            logger,
		Version:           version,
		DefaultModel:      cfg.Proxy.DefaultModel,
		DefaultLovedOneID: cfg.Chat.DefaultLovedOneID,
		JWTSecret:         cfg.Auth.JWTSecret,
		Timezone:          cfg.Dashboard.Timezone,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func serverRunning(cfg config.Config) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + cfg.Server.Addr() + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func stopServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("lsnm is not running (no PID file): %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("could not find process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		removePIDFile(pidPath)
		return fmt.Errorf("could not stop lsnm (PID %d): %w", pid, err)
	}

	printSuccess("Sent stop signal to lsnm (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	if serverRunning(cfg) {
		printStatus("Server", "running on %s", cfg.Server.Addr())
	} else {
		printStatus("Server", "stopped")
	}

	printStatus("Default model", "%s", cfg.Proxy.DefaultModel)
	printStatus("Default loved one", "%s", cfg.Chat.DefaultLovedOneID)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	if err := cfg.RequireAPIKey(); err != nil {
		printWarning("%v", err)
	}
	return nil
}
