package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"schemeaccess/internal/api"
	"schemeaccess/pkg/accessibility"
	"schemeaccess/pkg/audio"
	"schemeaccess/pkg/config"
	"schemeaccess/pkg/db"
	"schemeaccess/pkg/logging"
	"schemeaccess/pkg/probe"
	"schemeaccess/pkg/speech"
	"schemeaccess/pkg/store"
	"schemeaccess/pkg/stt"
	"schemeaccess/pkg/tracker"
	"schemeaccess/pkg/tts"
	"schemeaccess/pkg/version"
)

var (
	configPath = flag.String("config", "configs/schemeaccess.yaml", "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	trace      = flag.Bool("trace-audio", false, "Log every microphone frame at DEBUG level")
)

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	// API keys may come from a .env file next to the binary.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}
	logging.SetTrace(*trace)

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log, &appCfg.History)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	// Configure History Logging
	tts.SetLogPath(appCfg.History.TTS.Path)
	tts.SetLogEnabled(appCfg.History.TTS.Enabled)

	slog.Info("SchemeAccess Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	stats := tracker.New()
	guard := newEngineGuard(stats)
	lang := appCfg.Accessibility.Language
	out, player, prov, err := initSpeechOutput(ctx, appCfg, guard)
	if err != nil {
		return err
	}
	if player != nil {
		defer player.Shutdown()
	}

	relay := stt.NewRelay()
	rec, err := initRecognizer(ctx, appCfg, relay, guard)
	if err != nil {
		return err
	}

	checks := []probe.Probe{
		probe.Database(dbConn),
		probe.WritableDir("Speech Cache", appCfg.TTS.CacheDir),
	}
	if prov != nil {
		checks = append(checks, probe.Voices(appCfg.TTS.Engine, prov))
	}
	if err := probe.AnalyzeResults(probe.Run(ctx, checks)); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}
	in := speech.NewInput(rec, lang)

	root := accessibility.NewRoot()
	acc := accessibility.New(ctx, st, root, out, in,
		accessibility.WithStorageKey(appCfg.Accessibility.StorageKey))
	defer acc.StopListening()
	defer acc.StopSpeaking()

	outOK, inOK := acc.SpeechAvailable()
	slog.Info("Accessibility ready",
		"contrast", acc.Snapshot().HighContrast,
		"font", acc.Snapshot().FontScale,
		"speech_output", outOK,
		"speech_input", inOK)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	srv := api.NewServer(appCfg.Server,
		api.NewAccessibilityHandler(acc, root),
		api.NewSpeechHandler(acc),
		api.NewListenHandler(acc, relay),
		stats,
		func() {
			select {
			case quit <- syscall.SIGTERM:
			default:
			}
		})
	srv.Handler = loggingMiddleware(srv.Handler)

	return runServerLifecycle(ctx, srv, quit, time.Duration(appCfg.Server.ShutdownTimeout))
}

func initDB(appCfg *config.Config) (*db.DB, store.StateStore, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// initSpeechOutput builds the synthesis host. Engines that cannot start
// leave speech output unavailable and return a nil provider.
func initSpeechOutput(ctx context.Context, appCfg *config.Config, guard *engineGuard) (*speech.Output, audio.Service, tts.Provider, error) {
	lang := appCfg.Accessibility.Language
	prov, err := newTTSProvider(ctx, &appCfg.TTS)
	if err != nil {
		var cfgErr *engineError
		if errors.As(err, &cfgErr) {
			return nil, nil, nil, err
		}
		slog.Warn("Speech synthesis disabled", "engine", appCfg.TTS.Engine, "error", err)
		return speech.NewOutput(nil, lang), nil, nil, nil
	}
	if prov == nil {
		return speech.NewOutput(nil, lang), nil, nil, nil
	}

	prov = trackProvider(prov, appCfg.TTS.Engine, guard)
	player := audio.New(true)
	synth := tts.NewSynthesizer(prov, player, "", appCfg.TTS.CacheDir)
	return speech.NewOutput(synth, lang), player, prov, nil
}

// initRecognizer builds the recognition host fed by relay. It returns nil
// when no engine is configured or the engine cannot start.
func initRecognizer(ctx context.Context, appCfg *config.Config, relay *stt.Relay, guard *engineGuard) (speech.Recognizer, error) {
	engine, err := newTranscriber(ctx, &appCfg.STT)
	if err != nil {
		var cfgErr *engineError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		slog.Warn("Speech recognition disabled", "engine", appCfg.STT.Engine, "error", err)
		return nil, nil
	}
	if engine == nil {
		return nil, nil
	}
	return stt.NewRecognizer(trackTranscriber(engine, guard), relay, appCfg.STT.VAD), nil
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal, shutdownTimeout time.Duration) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
