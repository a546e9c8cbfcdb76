package api

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"schemeaccess/pkg/logging"
)

// maxParamLen drops long attribute values from the compact log view.
const maxParamLen = 20

// key=value or key="value with spaces"
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// LatestLogResponse is the body of GET /api/log/latest.
type LatestLogResponse struct {
	Log    string   `json:"log"`
	Event  string   `json:"event"`
	Events []string `json:"events,omitempty"`
}

// handleLatestLog returns the last server log line in compact form, the
// last speech event and, with ?events=N, the N most recent events.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	resp := LatestLogResponse{
		Log:   formatLogLine(logging.ServerCapture.Last()),
		Event: logging.EventCapture.Last(),
	}
	if v := r.URL.Query().Get("events"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "events must be a non-negative integer")
			return
		}
		resp.Events = logging.EventCapture.Recent(n)
	}
	writeJSON(w, http.StatusOK, resp)
}

// formatLogLine renders a slog text line as "HH:MM:SS msg (k=v, ...)".
// Attributes are sorted; long values are dropped.
func formatLogLine(raw string) string {
	var msg, stamp string
	var params []string

	for _, m := range logRegex.FindAllStringSubmatch(raw, -1) {
		key, val := m[1], m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		switch key {
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				stamp = t.Format("15:04:05")
			}
		case "level":
		case "msg":
			msg = val
		default:
			if len(val) <= maxParamLen {
				params = append(params, key+"="+val)
			}
		}
	}
	if msg == "" {
		return raw
	}

	out := msg
	if stamp != "" {
		out = stamp + " " + msg
	}
	if len(params) == 0 {
		return out
	}
	sort.Strings(params)
	return fmt.Sprintf("%s (%s)", out, strings.Join(params, ", "))
}
