package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"schemeaccess/pkg/accessibility"
)

// AccessibilityHandler serves the accessibility settings.
type AccessibilityHandler struct {
	store *accessibility.Store
	root  *accessibility.Root
}

// NewAccessibilityHandler creates a new AccessibilityHandler. root may be nil
// when the document state is applied elsewhere.
func NewAccessibilityHandler(st *accessibility.Store, root *accessibility.Root) *AccessibilityHandler {
	return &AccessibilityHandler{store: st, root: root}
}

// SettingsResponse is the settings plus the derived active flag.
type SettingsResponse struct {
	accessibility.Settings
	Active bool `json:"active"`
}

// SettingsUpdate is a partial update. Absent fields are left unchanged.
type SettingsUpdate struct {
	HighContrast *bool    `json:"highContrast"`
	FontScale    *int     `json:"fontScale"`
	SpeechRate   *float64 `json:"speechRate"`
	SpeechVolume *float64 `json:"speechVolume"`
}

func newSettingsResponse(st accessibility.Settings) SettingsResponse {
	return SettingsResponse{Settings: st, Active: st.Active()}
}

// HandleGet handles GET /api/accessibility
func (h *AccessibilityHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSettingsResponse(h.store.Snapshot()))
}

// HandlePut handles PUT /api/accessibility
func (h *AccessibilityHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	var req SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	st := h.store.Snapshot()
	if req.HighContrast != nil && *req.HighContrast != st.HighContrast {
		st = h.store.ToggleHighContrast(ctx)
	}
	if req.FontScale != nil {
		st = h.stepFontTo(ctx, *req.FontScale)
	}
	if req.SpeechRate != nil {
		st = h.store.SetSpeechRate(ctx, accessibility.ClampSpeechRate(*req.SpeechRate))
	}
	if req.SpeechVolume != nil {
		st = h.store.SetSpeechVolume(ctx, accessibility.ClampSpeechVolume(*req.SpeechVolume))
	}

	slog.Debug("Accessibility settings updated", "contrast", st.HighContrast, "font", st.FontScale, "rate", st.SpeechRate, "volume", st.SpeechVolume)
	writeJSON(w, http.StatusOK, newSettingsResponse(st))
}

// stepFontTo moves the font scale one step at a time toward target and
// stops at the last step not past it.
func (h *AccessibilityHandler) stepFontTo(ctx context.Context, target int) accessibility.Settings {
	target = accessibility.ClampFontScale(target)
	st := h.store.Snapshot()
	for st.FontScale < target {
		next := h.store.IncreaseFontSize(ctx)
		if next.FontScale == st.FontScale {
			break
		}
		st = next
	}
	for st.FontScale > target {
		next := h.store.DecreaseFontSize(ctx)
		if next.FontScale == st.FontScale {
			break
		}
		st = next
	}
	return st
}

// HandleToggleContrast handles POST /api/accessibility/contrast/toggle
func (h *AccessibilityHandler) HandleToggleContrast(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSettingsResponse(h.store.ToggleHighContrast(r.Context())))
}

// HandleFont handles POST /api/accessibility/font/{increase|decrease|reset}
func (h *AccessibilityHandler) HandleFont(w http.ResponseWriter, r *http.Request) {
	var st accessibility.Settings
	switch r.PathValue("action") {
	case "increase":
		st = h.store.IncreaseFontSize(r.Context())
	case "decrease":
		st = h.store.DecreaseFontSize(r.Context())
	case "reset":
		st = h.store.ResetFontSize(r.Context())
	default:
		writeError(w, http.StatusNotFound, "unknown font action")
		return
	}
	writeJSON(w, http.StatusOK, newSettingsResponse(st))
}

// HandleDocument handles GET /api/accessibility/document
func (h *AccessibilityHandler) HandleDocument(w http.ResponseWriter, r *http.Request) {
	if h.root == nil {
		writeError(w, http.StatusNotFound, "no document root")
		return
	}
	writeJSON(w, http.StatusOK, h.root.State())
}

// HandleStream handles GET /api/accessibility/stream as server-sent events.
// The current settings are sent first, then every change.
func (h *AccessibilityHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		slog.Debug("Could not clear write deadline for settings stream", "error", err)
	}

	updates, cancel := h.store.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	send := func(st accessibility.Settings) bool {
		data, err := json.Marshal(newSettingsResponse(st))
		if err != nil {
			slog.Error("Failed to encode settings event", "error", err)
			return false
		}
		if _, err := fmt.Fprintf(w, "event: settings\ndata: %s\n\n", data); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !send(h.store.Snapshot()) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case st, ok := <-updates:
			if !ok || !send(st) {
				return
			}
		}
	}
}
