package stt

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemeaccess/pkg/config"
	"schemeaccess/pkg/speech"
)

// 30 ms of 16 kHz audio.
const frameSamples = 480

func tone(amplitude int16) []byte {
	b := make([]byte, frameSamples*2)
	for i := 0; i < frameSamples; i++ {
		s := amplitude
		if i%2 == 1 {
			s = -amplitude
		}
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func loud() []byte   { return tone(3000) }
func silent() []byte { return tone(0) }

var testVAD = config.VADConfig{
	EnergyThreshold: 500,
	MinSpeech:       config.Duration(60 * time.Millisecond),
	Silence:         config.Duration(90 * time.Millisecond),
	InterimInterval: config.Duration(time.Hour),
}

type fakeTranscriber struct {
	mu    sync.Mutex
	calls []int
	text  string
	err   error
}

func (f *fakeTranscriber) Name() string { return "fake" }

func (f *fakeTranscriber) Transcribe(ctx context.Context, pcm []byte, lang string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, len(pcm))
	return f.text, f.err
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type sessionLog struct {
	mu      sync.Mutex
	results []speech.Result
	ended   chan struct{}
	failed  chan error
}

func record(s *speech.CaptureSession) *sessionLog {
	l := &sessionLog{ended: make(chan struct{}, 1), failed: make(chan error, 1)}
	s.OnResult(func(ev speech.ResultEvent) {
		r, _ := ev.Latest()
		l.mu.Lock()
		l.results = append(l.results, r)
		l.mu.Unlock()
	})
	s.OnEnd(func() { l.ended <- struct{}{} })
	s.OnError(func(err error) { l.failed <- err })
	return l
}

func (l *sessionLog) snapshot() []speech.Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]speech.Result(nil), l.results...)
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

func newSession(interim bool) *speech.CaptureSession {
	return speech.NewCaptureSession(speech.RecognitionConfig{InterimResults: interim, Lang: "en-IN"})
}

func TestVAD(t *testing.T) {
	v := NewVAD(testVAD)

	assert.Equal(t, VADNone, v.Process(silent()))
	assert.Equal(t, VADNone, v.Process(loud()))
	assert.Equal(t, VADSpeechStart, v.Process(loud()), "60ms of speech confirms start")
	assert.True(t, v.Speaking())

	assert.Equal(t, VADNone, v.Process(silent()))
	assert.Equal(t, VADNone, v.Process(loud()), "speech resets the silence run")
	assert.Equal(t, VADNone, v.Process(silent()))
	assert.Equal(t, VADNone, v.Process(silent()))
	assert.Equal(t, VADSpeechEnd, v.Process(silent()))
	assert.False(t, v.Speaking())

	v.Process(loud())
	v.Reset()
	assert.Equal(t, VADNone, v.Process(loud()), "reset clears the speech run")
}

func TestVAD_Defaults(t *testing.T) {
	v := NewVAD(config.VADConfig{})
	def := config.DefaultConfig().STT.VAD
	assert.Equal(t, def.EnergyThreshold, v.threshold)
	assert.Equal(t, time.Duration(def.Silence), v.silence)
}

func TestRMSEnergy(t *testing.T) {
	assert.Equal(t, 0.0, rmsEnergy(nil))
	assert.Equal(t, 0.0, rmsEnergy(silent()))
	assert.InDelta(t, 3000, rmsEnergy(loud()), 0.001)
}

func TestEncodeWAV(t *testing.T) {
	pcm := append(loud(), silent()...)
	data := EncodeWAV(pcm, SampleRate)
	require.Len(t, data, 44+len(pcm))

	s, format, err := wav.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, SampleRate, int(format.SampleRate))
	assert.Equal(t, 1, format.NumChannels)
	assert.Equal(t, 2*frameSamples, s.Len())
}

func TestRelay(t *testing.T) {
	r := NewRelay()
	assert.False(t, r.Available())
	_, err := r.Open()
	assert.ErrorIs(t, err, ErrNoMicrophone)

	feed, err := r.Connect()
	require.NoError(t, err)
	assert.True(t, r.Available())

	_, err = r.Connect()
	assert.ErrorIs(t, err, ErrMicrophoneBusy)

	frames, err := r.Open()
	require.NoError(t, err)
	assert.True(t, feed.Push(loud()))
	assert.Len(t, <-frames, frameSamples*2)

	feed.Close()
	feed.Close()
	assert.False(t, r.Available())
	assert.False(t, feed.Push(loud()), "push after close is ignored")
	_, open := <-frames
	assert.False(t, open)

	_, err = r.Connect()
	assert.NoError(t, err, "a new client may connect after close")
}

func TestRelay_DropsWhenFull(t *testing.T) {
	feed, err := NewRelay().Connect()
	require.NoError(t, err)
	for i := 0; i < relayBuffer; i++ {
		require.True(t, feed.Push(silent()))
	}
	assert.False(t, feed.Push(silent()))
}

func TestRecognizer_FinalResult(t *testing.T) {
	engine := &fakeTranscriber{text: "apply for ration card"}
	relay := NewRelay()
	feed, err := relay.Connect()
	require.NoError(t, err)

	rec := NewRecognizer(engine, relay, testVAD)
	require.True(t, rec.Available())

	s := newSession(true)
	log := record(s)
	require.NoError(t, rec.Start(s))

	for _, f := range [][]byte{silent(), silent(), loud(), loud(), loud(), loud(), loud(), silent(), silent(), silent()} {
		feed.Push(f)
	}

	waitFor(t, log.ended, "end")
	assert.Equal(t, []speech.Result{{Transcript: "apply for ration card", IsFinal: true}}, log.snapshot())
	assert.Equal(t, 1, engine.callCount())
	assert.Less(t, engine.calls[0], 10*frameSamples*2, "leading silence beyond the pre-roll is trimmed")

	require.NoError(t, rec.Start(newSession(false)), "recognizer is free after the session ends")
}

func TestRecognizer_InterimResults(t *testing.T) {
	engine := &fakeTranscriber{text: "pension"}
	relay := NewRelay()
	feed, _ := relay.Connect()

	cfg := testVAD
	cfg.InterimInterval = config.Duration(time.Nanosecond)
	rec := NewRecognizer(engine, relay, cfg)

	s := newSession(true)
	log := record(s)
	require.NoError(t, rec.Start(s))

	for _, f := range [][]byte{loud(), loud(), loud(), loud(), silent(), silent(), silent()} {
		feed.Push(f)
	}

	waitFor(t, log.ended, "end")
	results := log.snapshot()
	require.GreaterOrEqual(t, len(results), 2)
	assert.False(t, results[0].IsFinal)
	assert.True(t, results[len(results)-1].IsFinal)
}

func TestRecognizer_InterimDisabled(t *testing.T) {
	cfg := testVAD
	cfg.InterimInterval = config.Duration(time.Nanosecond)
	engine := &fakeTranscriber{text: "pension"}
	relay := NewRelay()
	feed, _ := relay.Connect()
	rec := NewRecognizer(engine, relay, cfg)

	s := newSession(false)
	log := record(s)
	require.NoError(t, rec.Start(s))
	for _, f := range [][]byte{loud(), loud(), loud(), loud(), silent(), silent(), silent()} {
		feed.Push(f)
	}

	waitFor(t, log.ended, "end")
	assert.Len(t, log.snapshot(), 1)
}

func TestRecognizer_MicrophoneClosed(t *testing.T) {
	tests := []struct {
		name        string
		frames      [][]byte
		wantResults int
	}{
		{name: "While Speaking", frames: [][]byte{loud(), loud(), loud()}, wantResults: 1},
		{name: "Before Speech", frames: [][]byte{silent(), silent()}, wantResults: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeTranscriber{text: "widow pension"}
			relay := NewRelay()
			feed, _ := relay.Connect()
			rec := NewRecognizer(engine, relay, testVAD)

			s := newSession(true)
			log := record(s)
			require.NoError(t, rec.Start(s))
			for _, f := range tt.frames {
				feed.Push(f)
			}
			feed.Close()

			waitFor(t, log.ended, "end")
			assert.Len(t, log.snapshot(), tt.wantResults)
		})
	}
}

func TestRecognizer_TranscriptionError(t *testing.T) {
	engine := &fakeTranscriber{err: errors.New("quota exceeded")}
	relay := NewRelay()
	feed, _ := relay.Connect()
	rec := NewRecognizer(engine, relay, testVAD)

	s := newSession(true)
	log := record(s)
	require.NoError(t, rec.Start(s))
	for _, f := range [][]byte{loud(), loud(), loud(), silent(), silent(), silent()} {
		feed.Push(f)
	}

	err := waitFor(t, log.failed, "failure")
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Empty(t, log.snapshot())
}

func TestRecognizer_StopAndBusy(t *testing.T) {
	engine := &fakeTranscriber{text: "x"}
	relay := NewRelay()
	feed, _ := relay.Connect()
	rec := NewRecognizer(engine, relay, testVAD)

	s := newSession(true)
	log := record(s)
	require.NoError(t, rec.Start(s))
	assert.ErrorIs(t, rec.Start(newSession(true)), ErrBusy)

	rec.Stop()
	rec.Stop()
	for _, f := range [][]byte{loud(), loud(), loud(), silent(), silent(), silent()} {
		feed.Push(f)
	}
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, log.snapshot(), "stopped session receives no results")

	require.NoError(t, rec.Start(newSession(true)))
}

func TestRecognizer_Unavailable(t *testing.T) {
	var nilRec *Recognizer
	assert.False(t, nilRec.Available())
	assert.False(t, NewRecognizer(nil, NewRelay(), testVAD).Available())

	rec := NewRecognizer(&fakeTranscriber{}, NewRelay(), testVAD)
	assert.False(t, rec.Available(), "no client connected")
	assert.ErrorIs(t, rec.Start(newSession(true)), ErrNoMicrophone)
}

func TestRecognizer_WithSpeechInput(t *testing.T) {
	engine := &fakeTranscriber{text: "scholarship for girls"}
	relay := NewRelay()
	feed, _ := relay.Connect()
	in := speech.NewInput(NewRecognizer(engine, relay, testVAD), "en-IN")

	var mu sync.Mutex
	var flags []bool
	in.SetStateHandler(func(listening bool) {
		mu.Lock()
		flags = append(flags, listening)
		mu.Unlock()
	})

	heard := make(chan string, 4)
	s, err := in.StartListening(func(tr string) { heard <- tr })
	require.NoError(t, err)
	assert.Equal(t, "en-IN", s.Config.Lang)

	for _, f := range [][]byte{loud(), loud(), loud(), silent(), silent(), silent()} {
		feed.Push(f)
	}

	assert.Equal(t, "scholarship for girls", waitFor(t, heard, "transcript"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(flags) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []bool{true, false}, flags)
}
