package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"schemeaccess/pkg/accessibility"
	"schemeaccess/pkg/speech"
)

// maxPageBytes bounds the HTML accepted by read-page.
const maxPageBytes = 2 << 20

// SpeechHandler serves speech output endpoints.
type SpeechHandler struct {
	store *accessibility.Store
}

// NewSpeechHandler creates a new SpeechHandler.
func NewSpeechHandler(st *accessibility.Store) *SpeechHandler {
	return &SpeechHandler{store: st}
}

// SpeakRequest asks for text to be read aloud.
type SpeakRequest struct {
	Text string `json:"text"`
}

// ReadPageRequest carries the HTML of the page to read.
type ReadPageRequest struct {
	HTML string `json:"html"`
}

// SpeechStatusResponse represents the speech status.
type SpeechStatusResponse struct {
	Speaking        bool    `json:"speaking"`
	Listening       bool    `json:"listening"`
	OutputAvailable bool    `json:"outputAvailable"`
	InputAvailable  bool    `json:"inputAvailable"`
	Rate            float64 `json:"rate"`
	Volume          float64 `json:"volume"`
}

// HandleSpeak handles POST /api/speech/speak
func (h *SpeechHandler) HandleSpeak(w http.ResponseWriter, r *http.Request) {
	var req SpeakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.respondUtterance(w, h.store.Speak(req.Text))
}

// HandleReadPage handles POST /api/speech/read-page
func (h *SpeechHandler) HandleReadPage(w http.ResponseWriter, r *http.Request) {
	var req ReadPageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPageBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.store.ReadPage(req.HTML)
	if errors.Is(err, accessibility.ErrNoReadableText) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondUtterance(w, u)
}

// respondUtterance reports whether anything was queued. Blank text and
// missing synthesis queue nothing.
func (h *SpeechHandler) respondUtterance(w http.ResponseWriter, u *speech.Utterance) {
	resp := map[string]any{"status": "ok", "queued": u != nil}
	if u != nil {
		resp["utterance"] = u.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleControl handles POST /api/speech/{stop|pause|resume}
func (h *SpeechHandler) HandleControl(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")
	switch action {
	case "stop":
		h.store.StopSpeaking()
	case "pause":
		h.store.PauseSpeaking()
	case "resume":
		h.store.ResumeSpeaking()
	default:
		writeError(w, http.StatusNotFound, "unknown speech action")
		return
	}

	slog.Debug("Speech control", "action", action)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleStatus handles GET /api/speech/status
func (h *SpeechHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st := h.store.Snapshot()
	out, in := h.store.SpeechAvailable()
	writeJSON(w, http.StatusOK, SpeechStatusResponse{
		Speaking:        st.Speaking,
		Listening:       st.Listening,
		OutputAvailable: out,
		InputAvailable:  in,
		Rate:            st.SpeechRate,
		Volume:          st.SpeechVolume,
	})
}
