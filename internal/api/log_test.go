package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"schemeaccess/pkg/logging"
)

func TestFormatLogLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "Params Sorted And Long Values Dropped",
			input: `time=2026-03-02T09:15:04.074+05:30 level=INFO msg="Speech recognition error" session=8c1f error=quota engine=openai longparam=thisiswaytooLongtobedisplayed`,
			want:  "09:15:04 Speech recognition error (engine=openai, error=quota, session=8c1f)",
		},
		{
			name:  "No Params",
			input: `time=2026-03-02T09:15:04+05:30 level=WARN msg="Speech synthesis not supported"`,
			want:  "09:15:04 Speech synthesis not supported",
		},
		{
			name:  "Not A Slog Line",
			input: "plain text",
			want:  "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatLogLine(tt.input); got != tt.want {
				t.Errorf("formatLogLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleLatestLog(t *testing.T) {
	_, _ = logging.EventCapture.Write([]byte("[09:15:03] [spoken] apply online\n"))
	_, _ = logging.EventCapture.Write([]byte("[09:15:04] [heard] widow pension\n"))

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantEvents int
	}{
		{name: "Latest Only", query: "", wantStatus: http.StatusOK},
		{name: "Recent Events", query: "?events=2", wantStatus: http.StatusOK, wantEvents: 2},
		{name: "Bad Count", query: "?events=many", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleLatestLog(rec, httptest.NewRequest(http.MethodGet, "/api/log/latest"+tt.query, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var body LatestLogResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Event != "[09:15:04] [heard] widow pension" {
				t.Errorf("event = %q", body.Event)
			}
			if len(body.Events) != tt.wantEvents {
				t.Errorf("events = %q, want %d", body.Events, tt.wantEvents)
			}
			if tt.wantEvents == 2 && body.Events[0] != "[09:15:03] [spoken] apply online" {
				t.Errorf("events[0] = %q", body.Events[0])
			}
		})
	}
}
