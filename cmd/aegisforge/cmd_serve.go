package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/aegisforge/internal/config"
	"github.com/user/aegisforge/internal/janitor"
	"github.com/user/aegisforge/internal/notify"
	"github.com/user/aegisforge/internal/report"
	"github.com/user/aegisforge/internal/scenario"
	"github.com/user/aegisforge/internal/session"
	wsignal "github.com/user/aegisforge/internal/signal"
	"github.com/user/aegisforge/internal/timers"
	"github.com/user/aegisforge/pkg/llm"
	"github.com/user/aegisforge/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the interview daemon",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "aegisforge.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func sessionConfig(cfg *config.Config) session.Config {
	sc := session.DefaultConfig()
	sc.DataDir = cfg.DataDir
	sc.Model = cfg.LLM.Model
	sc.MaxContextTokens = cfg.LLM.MaxContextTokens
	sc.OutputReserve = cfg.LLM.OutputReserve
	sc.Role = cfg.Session.Role
	if cfg.Session.EvalConcurrency > 0 {
		sc.EvalConcurrency = cfg.Session.EvalConcurrency
	}
	if cfg.Session.GoodbyeTimeoutSec > 0 {
		sc.GoodbyeTimeout = secs(cfg.Session.GoodbyeTimeoutSec)
	}
	if cfg.Session.MaxDurationSec > 0 {
		sc.Clock = timers.ClockConfig{
			MaxDuration: secs(cfg.Session.MaxDurationSec),
			WarningAt:   secs(cfg.Session.WarningAtSec),
		}
	}
	if cfg.Session.CrisisFirstSec > 0 {
		sc.Crisis = timers.CrisisConfig{
			FirstDelay:  secs(cfg.Session.CrisisFirstSec),
			SecondDelay: secs(cfg.Session.CrisisSecondSec),
		}
	}
	if cfg.Session.PressureGraceSec > 0 {
		sc.Pressure = timers.PressureConfig{
			Grace:       secs(cfg.Session.PressureGraceSec),
			MinInterval: secs(cfg.Session.PressureMinSec),
			MaxInterval: secs(cfg.Session.PressureMaxSec),
			Chance:      cfg.Session.PressureChance,
		}
	}
	if cfg.Session.MoleMinSec > 0 {
		sc.Mole = timers.MoleConfig{
			MinDelay: secs(cfg.Session.MoleMinSec),
			MaxDelay: secs(cfg.Session.MoleMaxSec),
		}
	}
	return sc
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	loader, err := scenario.NewLoader()
	if err != nil {
		return fmt.Errorf("load scenario bank: %w", err)
	}

	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})

	var notifier session.Notifier
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			slog.Error("failed to create telegram notifier", "error", err)
		} else {
			notifier = tg
			slog.Info("telegram notifier enabled", "chat_id", cfg.Telegram.ChatID)
		}
	} else {
		slog.Warn("telegram notifier disabled (no token)")
	}

	sweeper := janitor.New(cfg.DataDir, cfg.Janitor.MaxAgeDays)
	if err := sweeper.Start(cfg.Janitor.Schedule); err != nil {
		return err
	}
	defer sweeper.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sc := sessionConfig(cfg)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		room, err := wsignal.AcceptRoom(w, r)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}

		scen := loader.Get(r.URL.Query().Get("scenario"))
		if id := cfg.Session.ScenarioID; r.URL.Query().Get("scenario") == "" && id != "" {
			scen = loader.Get(id)
		}
		candidate := scenario.LoadCandidate(cfg.Session.CandidateAudit)

		coord, err := session.New(sc, scen, candidate, room, provider, report.TextRenderer{}, notifier)
		if err != nil {
			slog.Error("failed to start session", "error", err)
			room.Close()
			return
		}
		slog.Info("session accepted", "session_id", coord.ID(), "remote", r.RemoteAddr)
		if err := coord.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("session ended with error", "session_id", coord.ID(), "error", err)
		}
	})

	srv := &http.Server{Addr: cfg.Listen, Handler: mux}
	go func() {
		slog.Info("aegisforge started",
			"listen", cfg.Listen,
			"data_dir", cfg.DataDir,
			"log_level", cfg.LogLevel,
			"llm_model", cfg.LLM.Model,
			"pid_file", pidPath,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
