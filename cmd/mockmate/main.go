package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Samarth-1003/MockMate-AI/pkg/adapters/stt"
	"github.com/Samarth-1003/MockMate-AI/pkg/adapters/tts"
	"github.com/Samarth-1003/MockMate-AI/pkg/config"
	"github.com/Samarth-1003/MockMate-AI/pkg/configutil"
	"github.com/Samarth-1003/MockMate-AI/pkg/engine"
	"github.com/Samarth-1003/MockMate-AI/pkg/errorsx"
	"github.com/Samarth-1003/MockMate-AI/pkg/evaluator"
	"github.com/Samarth-1003/MockMate-AI/pkg/logging"
	"github.com/Samarth-1003/MockMate-AI/pkg/metrics"
	"github.com/Samarth-1003/MockMate-AI/pkg/notify"
	"github.com/Samarth-1003/MockMate-AI/pkg/providers/deepgram"
	"github.com/Samarth-1003/MockMate-AI/pkg/providers/elevenlabs"
	mockprov "github.com/Samarth-1003/MockMate-AI/pkg/providers/mock"
	"github.com/Samarth-1003/MockMate-AI/pkg/redact"
	"github.com/Samarth-1003/MockMate-AI/pkg/resilience"
	"github.com/Samarth-1003/MockMate-AI/pkg/runner"
	"github.com/Samarth-1003/MockMate-AI/pkg/session"
	wstransport "github.com/Samarth-1003/MockMate-AI/pkg/transports/ws"
)

type deepgramSettings struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	Language   string `mapstructure:"language"`
	SampleRate int    `mapstructure:"sample_rate"`
	Encoding   string `mapstructure:"encoding"`
	Interim    *bool  `mapstructure:"interim"`
}

type elevenlabsSettings struct {
	APIKey       string `mapstructure:"api_key"`
	VoiceID      string `mapstructure:"voice_id"`
	ModelID      string `mapstructure:"model_id"`
	OutputFormat string `mapstructure:"output_format"`
	SampleRate   int    `mapstructure:"sample_rate"`
}

func initLogger(level, format string) *slog.Logger {
	lvl := logging.ParseLevel(level)
	var logger *slog.Logger
	switch strings.ToLower(format) {
	case "json":
		logger = logging.InitLogger(lvl)
	default:
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	}
	slog.SetDefault(logger)
	logger.Info("logger initialized", "level", lvl.String(), "format", format)
	return logger
}

func buildSpeechFactory(cfg config.Config) (engine.SpeechFactory, error) {
	sttProvider := strings.ToLower(strings.TrimSpace(cfg.Vendors.STT.Provider))
	ttsProvider := strings.ToLower(strings.TrimSpace(cfg.Vendors.TTS.Provider))

	if sttProvider == "mock" && ttsProvider == "mock" {
		return nil, nil
	}

	var dgSettings deepgramSettings
	if sttProvider == "deepgram" {
		if err := configutil.ValidateSettings(cfg.Vendors.STT.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "language", "sample_rate", "encoding", "interim"},
		}); err != nil {
			return nil, fmt.Errorf("vendors.stt.settings: %w", err)
		}
		if err := configutil.DecodeSettings(cfg.Vendors.STT.Settings, &dgSettings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(dgSettings.APIKey, "vendors.stt.settings.api_key"); err != nil {
			return nil, err
		}
	} else if sttProvider != "mock" {
		return nil, fmt.Errorf("unknown stt provider %q", sttProvider)
	}

	var elSettings elevenlabsSettings
	if ttsProvider == "elevenlabs" {
		if err := configutil.ValidateSettings(cfg.Vendors.TTS.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"voice_id", "model_id", "output_format", "sample_rate"},
		}); err != nil {
			return nil, fmt.Errorf("vendors.tts.settings: %w", err)
		}
		if err := configutil.DecodeSettings(cfg.Vendors.TTS.Settings, &elSettings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(elSettings.APIKey, "vendors.tts.settings.api_key"); err != nil {
			return nil, err
		}
	} else if ttsProvider != "mock" {
		return nil, fmt.Errorf("unknown tts provider %q", ttsProvider)
	}

	return func(ctx context.Context, sessionID string, sink func([]byte)) (tts.SpeechOutput, stt.SpeechInput, error) {
		var out tts.SpeechOutput
		var in stt.SpeechInput
		var err error

		switch ttsProvider {
		case "elevenlabs":
			out, err = elevenlabs.New(ctx, elevenlabs.Config{
				APIKey:       elSettings.APIKey,
				VoiceID:      elSettings.VoiceID,
				ModelID:      elSettings.ModelID,
				OutputFormat: elSettings.OutputFormat,
				SampleRate:   elSettings.SampleRate,
				SessionID:    sessionID,
				AudioSink:    sink,
			})
			if err != nil {
				return nil, nil, err
			}
		default:
			out = mockprov.NewSpeechOutput(mockprov.TTSConfig{SessionID: sessionID, AutoFinish: true})
		}

		switch sttProvider {
		case "deepgram":
			in, err = deepgram.New(ctx, deepgram.Config{
				APIKey:     dgSettings.APIKey,
				Model:      dgSettings.Model,
				Language:   dgSettings.Language,
				SampleRate: dgSettings.SampleRate,
				Encoding:   dgSettings.Encoding,
				Interim:    configutil.BoolValue(dgSettings.Interim, true),
				SessionID:  sessionID,
			})
			if err != nil {
				_ = out.Close()
				return nil, nil, err
			}
		default:
			in = mockprov.NewSpeechInput(mockprov.STTConfig{SessionID: sessionID})
		}
		return out, in, nil
	}, nil
}

type drainAdapter struct {
	eng     *engine.Engine
	timeout time.Duration
}

func (d drainAdapter) Drain() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	d.eng.Drain(ctx, 200*time.Millisecond)
	d.eng.Shutdown()
	return nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.LogLevel, cfg.LogFormat)
	redact.SetEnabled(cfg.Environment == "production")

	evalClient := evaluator.NewHTTPClient(cfg.Evaluator.BaseURL)
	evalClient.Client = &http.Client{Timeout: time.Duration(cfg.Evaluator.TimeoutMS) * time.Millisecond}
	evalClient.Retry = resilience.NewRetryPolicy(cfg.Evaluator.Retries,
		time.Duration(cfg.Evaluator.RetryBackoffMS)*time.Millisecond)

	speechFactory, err := buildSpeechFactory(cfg)
	if err != nil {
		logger.Error("speech provider config invalid", "error", err)
		os.Exit(1)
	}

	var notifier *notify.Notifier
	if cfg.Notify.AccountSID != "" {
		notifier = notify.NewNotifier(notify.Config{
			AccountSID: cfg.Notify.AccountSID,
			AuthToken:  cfg.Notify.AuthToken,
			From:       cfg.Notify.From,
			To:         cfg.Notify.To,
		})
	}

	obs := metrics.NewLoggerObserver(logger)
	eng := engine.New(engine.Config{
		Evaluator: evalClient,
		Notifier:  notifier,
		Speech:    speechFactory,
		Pacing:    cfg.SessionPacing(),
		Scoring:   cfg.ScoringOptions(),
		Logger:    logger,
		Observer:  obs,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": eng.Count(),
		})
	})

	e.POST("/setup", func(c echo.Context) error {
		file, err := c.FormFile("resume")
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "resume file is required"})
		}
		src, err := file.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "cannot read resume"})
		}
		defer src.Close()

		jobDescription := c.FormValue("job_description")
		name := c.FormValue("name")
		mode := session.ParseMode(c.FormValue("mode"))

		iv, err := eng.CreateSession(c.Request().Context(), src, file.Filename, jobDescription, name, mode)
		if err != nil {
			status := http.StatusBadGateway
			if errorsx.HasReason(err, errorsx.ReasonEmptyQuestionSet) {
				status = http.StatusUnprocessableEntity
			}
			if errorsx.HasReason(err, errorsx.ReasonRateLimited) {
				status = http.StatusTooManyRequests
			}
			return c.JSON(status, map[string]string{
				"error":  err.Error(),
				"reason": string(errorsx.Reason(err)),
			})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"session_id": iv.ID,
			"mode":       iv.Mode.String(),
			"questions":  len(iv.Questions),
		})
	})

	e.GET("/ws", func(c echo.Context) error {
		sessionID := c.QueryParam("session")
		if _, ok := eng.Get(sessionID); !ok {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error":  "unknown session",
				"reason": string(errorsx.ReasonSessionNotFound),
			})
		}
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}
		t := wstransport.New(conn, sessionID)
		if err := eng.Attach(sessionID, t); err != nil {
			_ = t.Stop()
			return nil
		}
		return nil
	})

	hooks := runner.Hooks{
		OnStart: func() {
			go func() {
				logger.Info("http server listening", "addr", cfg.Server.Addr)
				if err := e.Start(cfg.Server.Addr); err != nil && err != http.ErrServerClosed {
					logger.Error("http server stopped", "error", err)
				}
			}()
		},
		OnStop: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = e.Shutdown(ctx)
		},
	}

	life := runner.NewLifecycleRunner(drainAdapter{eng: eng, timeout: 10 * time.Second}, hooks, 15*time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := life.Run(ctx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
