package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"schemeaccess/pkg/config"
	"schemeaccess/pkg/tracker"
	"schemeaccess/pkg/version"
)

// NewServer creates and configures the HTTP server.
// It accepts handlers for all API endpoints and a shutdownFunc for graceful shutdown.
func NewServer(cfg config.ServerConfig, acc *AccessibilityHandler, sp *SpeechHandler, listen *ListenHandler, stats *tracker.Tracker, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health Endpoint
	mux.HandleFunc("GET /health", handleHealth)

	// 2. Version and Logs
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"engines": stats.Snapshot()})
	})

	// 3. Accessibility Settings
	mux.HandleFunc("GET /api/accessibility", acc.HandleGet)
	mux.HandleFunc("PUT /api/accessibility", acc.HandlePut)
	mux.HandleFunc("POST /api/accessibility/contrast/toggle", acc.HandleToggleContrast)
	mux.HandleFunc("POST /api/accessibility/font/{action}", acc.HandleFont)
	mux.HandleFunc("GET /api/accessibility/document", acc.HandleDocument)
	mux.HandleFunc("GET /api/accessibility/stream", acc.HandleStream)

	// 4. Speech Output
	mux.HandleFunc("POST /api/speech/speak", sp.HandleSpeak)
	mux.HandleFunc("POST /api/speech/read-page", sp.HandleReadPage)
	mux.HandleFunc("POST /api/speech/{action}", sp.HandleControl)
	mux.HandleFunc("GET /api/speech/status", sp.HandleStatus)

	// 5. Speech Input
	if listen != nil {
		mux.HandleFunc("GET /api/speech/listen", listen.Handle)
		mux.HandleFunc("POST /api/speech/listen/stop", listen.HandleStop)
	}

	// 6. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	// Request contexts end when Shutdown starts so long-lived streams return.
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.ReadTimeout),
		WriteTimeout: time.Duration(cfg.WriteTimeout),
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return base },
	}
	srv.RegisterOnShutdown(cancel)
	return srv
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"status":  "error",
		"message": msg,
	})
}
