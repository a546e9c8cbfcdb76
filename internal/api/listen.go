package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"schemeaccess/pkg/accessibility"
	"schemeaccess/pkg/speech"
	"schemeaccess/pkg/stt"
)

// Listen message types sent to the client.
const (
	msgStart  = "start"
	msgResult = "result"
	msgEnd    = "end"
	msgError  = "error"
	msgStop   = "stop"
)

// ListenMessage is one JSON message on the listen socket.
type ListenMessage struct {
	Type       string `json:"type"`
	Session    string `json:"session,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Final      bool   `json:"final,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ListenHandler bridges a browser microphone to speech input. Binary frames
// carry 16 kHz mono 16-bit PCM; text frames carry control messages.
type ListenHandler struct {
	store    *accessibility.Store
	relay    *stt.Relay
	upgrader websocket.Upgrader
}

// NewListenHandler creates a new ListenHandler.
func NewListenHandler(st *accessibility.Store, relay *stt.Relay) *ListenHandler {
	return &ListenHandler{
		store: st,
		relay: relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			// Portal pages are served from a different origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle handles GET /api/speech/listen
func (h *ListenHandler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Listen: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	feed, err := h.relay.Connect()
	if err != nil {
		h.closeWith(conn, ListenMessage{Type: msgError, Error: err.Error()})
		return
	}
	defer feed.Close()

	sess, err := h.store.StartListening(nil)
	if err != nil {
		h.closeWith(conn, ListenMessage{Type: msgError, Error: err.Error()})
		return
	}

	// Messages are queued without blocking so a gone client never stalls
	// the recognizer.
	out := make(chan ListenMessage, 64)
	queue := func(m ListenMessage) {
		select {
		case out <- m:
		default:
			slog.Warn("Listen: dropping message for slow client", "type", m.Type)
		}
	}
	var once sync.Once
	finish := func(m ListenMessage) { once.Do(func() { queue(m) }) }

	sess.OnResult(func(ev speech.ResultEvent) {
		if res, ok := ev.Latest(); ok {
			queue(ListenMessage{Type: msgResult, Session: sess.ID, Transcript: res.Transcript, Final: res.IsFinal})
		}
	})
	sess.OnEnd(func() { finish(ListenMessage{Type: msgEnd, Session: sess.ID}) })
	sess.OnError(func(err error) { finish(ListenMessage{Type: msgError, Session: sess.ID, Error: err.Error()}) })

	if err := conn.WriteJSON(ListenMessage{Type: msgStart, Session: sess.ID}); err != nil {
		h.store.StopListening()
		return
	}
	if sess.Done() {
		finish(ListenMessage{Type: msgEnd, Session: sess.ID})
	}

	gone := make(chan struct{})
	go h.readLoop(conn, feed, gone)

	for {
		select {
		case m := <-out:
			if m.Type == msgEnd || m.Type == msgError {
				h.closeWith(conn, m)
				return
			}
			if err := conn.WriteJSON(m); err != nil {
				slog.Debug("Listen: write failed", "error", err)
				return
			}
		case <-gone:
			// Closing the feed ends the session from the microphone side.
			return
		}
	}
}

func (h *ListenHandler) readLoop(conn *websocket.Conn, feed *stt.Feed, gone chan<- struct{}) {
	defer close(gone)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch mt {
		case websocket.BinaryMessage:
			feed.Push(data)
		case websocket.TextMessage:
			var m ListenMessage
			if err := json.Unmarshal(data, &m); err != nil {
				slog.Debug("Listen: ignoring malformed control message", "error", err)
				continue
			}
			if m.Type == msgStop {
				h.store.StopListening()
			}
		}
	}
}

func (h *ListenHandler) closeWith(conn *websocket.Conn, m ListenMessage) {
	if err := conn.WriteJSON(m); err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, m.Type))
}

// HandleStop handles POST /api/speech/listen/stop
func (h *ListenHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.store.StopListening()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
