package speech

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSynth records calls and lets tests drive utterance lifecycle events.
type fakeSynth struct {
	mu         sync.Mutex
	available  bool
	autoStart  bool
	utterances []*Utterance
	cancels    int
	pauses     int
	resumes    int
}

func (f *fakeSynth) Available() bool { return f.available }

func (f *fakeSynth) Speak(u *Utterance) {
	f.mu.Lock()
	f.utterances = append(f.utterances, u)
	f.mu.Unlock()
	if f.autoStart {
		u.Started()
	}
}

func (f *fakeSynth) Cancel() {
	f.mu.Lock()
	f.cancels++
	f.mu.Unlock()
}

func (f *fakeSynth) Pause()  { f.pauses++ }
func (f *fakeSynth) Resume() { f.resumes++ }

// fakeRecognizer records sessions and lets tests drive capture events.
type fakeRecognizer struct {
	available bool
	startErr  error
	sessions  []*CaptureSession
	stops     int
}

func (f *fakeRecognizer) Available() bool { return f.available }

func (f *fakeRecognizer) Start(s *CaptureSession) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.sessions = append(f.sessions, s)
	return nil
}

func (f *fakeRecognizer) Stop() { f.stops++ }

type flagRecorder struct {
	mu     sync.Mutex
	values []bool
}

func (r *flagRecorder) set(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *flagRecorder) get() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.values...)
}

func TestOutput_Speak(t *testing.T) {
	tests := []struct {
		name      string
		available bool
		text      string
		wantNil   bool
	}{
		{"Speaks text", true, "Apply now", false},
		{"Empty text is a no-op", true, "", true},
		{"Whitespace text is a no-op", true, "   ", true},
		{"Tabs and newlines are a no-op", true, "\t\n ", true},
		{"Unavailable host is a no-op", false, "Apply now", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &fakeSynth{available: tt.available}
			out := NewOutput(host, "")
			rec := &flagRecorder{}
			out.SetStateHandler(rec.set)

			u := out.Speak(tt.text, 1.2, 0.8)
			if tt.wantNil {
				assert.Nil(t, u)
				assert.Empty(t, host.utterances)
				assert.Zero(t, host.cancels)
				assert.Empty(t, rec.get())
				return
			}

			require.NotNil(t, u)
			assert.Equal(t, tt.text, u.Text)
			assert.Equal(t, 1.2, u.Rate)
			assert.Equal(t, 0.8, u.Volume)
			assert.Equal(t, "en-US", u.Lang)
			assert.NotEmpty(t, u.ID)
			assert.Equal(t, 1, host.cancels, "active speech is canceled before enqueue")
			require.Len(t, host.utterances, 1)

			u.Started()
			assert.Equal(t, []bool{true}, rec.get())
			u.Ended()
			assert.Equal(t, []bool{true, false}, rec.get())
			assert.Nil(t, out.Current())
		})
	}
}

func TestOutput_SupersededUtteranceIsIgnored(t *testing.T) {
	host := &fakeSynth{available: true}
	out := NewOutput(host, "en-US")
	rec := &flagRecorder{}
	out.SetStateHandler(rec.set)

	first := out.Speak("first", 1, 1)
	first.Started()
	second := out.Speak("second", 1, 1)

	assert.True(t, first.Done(), "superseded utterance is terminated")
	assert.ErrorIs(t, first.Err(), ErrCanceled)

	// Late events from the first utterance must not touch the flag.
	first.Ended()
	first.Failed(errors.New("interrupted"))

	second.Started()
	second.Ended()

	assert.Equal(t, []bool{true, true, false}, rec.get())
	assert.Nil(t, out.Current())
}

func TestOutput_ErrorClearsSpeaking(t *testing.T) {
	host := &fakeSynth{available: true, autoStart: true}
	out := NewOutput(host, "en-US")
	rec := &flagRecorder{}
	out.SetStateHandler(rec.set)

	u := out.Speak("hello", 1, 1)
	u.Failed(errors.New("audio device lost"))

	assert.Equal(t, []bool{true, false}, rec.get())
	u.Ended()
	assert.Equal(t, []bool{true, false}, rec.get(), "terminal events fire once")
}

func TestOutput_Stop(t *testing.T) {
	t.Run("While speaking", func(t *testing.T) {
		host := &fakeSynth{available: true, autoStart: true}
		out := NewOutput(host, "en-US")
		rec := &flagRecorder{}
		out.SetStateHandler(rec.set)

		u := out.Speak("hello", 1, 1)
		out.Stop()

		assert.Equal(t, []bool{true, false}, rec.get())
		assert.True(t, u.Done())
		assert.Equal(t, 2, host.cancels)

		u.Ended()
		assert.Equal(t, []bool{true, false}, rec.get())
	})

	t.Run("While idle", func(t *testing.T) {
		host := &fakeSynth{available: true}
		out := NewOutput(host, "en-US")
		rec := &flagRecorder{}
		out.SetStateHandler(rec.set)

		out.Stop()
		assert.Equal(t, []bool{false}, rec.get())
	})

	t.Run("Unavailable", func(t *testing.T) {
		out := NewOutput(nil, "en-US")
		rec := &flagRecorder{}
		out.SetStateHandler(rec.set)

		out.Stop()
		out.Pause()
		out.Resume()
		assert.Empty(t, rec.get())
		assert.False(t, out.Available())
	})
}

func TestOutput_PauseResumeKeepFlag(t *testing.T) {
	host := &fakeSynth{available: true, autoStart: true}
	out := NewOutput(host, "en-US")
	rec := &flagRecorder{}
	out.SetStateHandler(rec.set)

	out.Speak("hello", 1, 1)
	out.Pause()
	out.Resume()

	assert.Equal(t, 1, host.pauses)
	assert.Equal(t, 1, host.resumes)
	assert.Equal(t, []bool{true}, rec.get())
}

func TestInput_StartListening(t *testing.T) {
	host := &fakeRecognizer{available: true}
	in := NewInput(host, "en-US")
	rec := &flagRecorder{}
	in.SetStateHandler(rec.set)

	var transcripts []string
	s, err := in.StartListening(func(tr string) { transcripts = append(transcripts, tr) })
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.False(t, s.Config.Continuous)
	assert.True(t, s.Config.InterimResults)
	assert.Equal(t, "en-US", s.Config.Lang)
	assert.Empty(t, rec.get(), "listening waits for the start event")

	s.Started()
	s.Result(ResultEvent{Results: []Result{{Transcript: "old age"}}})
	s.Result(ResultEvent{Results: []Result{
		{Transcript: "old age", IsFinal: true},
		{Transcript: "old age pension", IsFinal: true},
	}})
	s.Result(ResultEvent{})
	s.Ended()

	assert.Equal(t, []string{"old age", "old age pension"}, transcripts)
	assert.Equal(t, []bool{true, false}, rec.get())
	assert.Nil(t, in.Current())

	s.Result(ResultEvent{Results: []Result{{Transcript: "late"}}})
	assert.Len(t, transcripts, 2, "results after end are dropped")
}

func TestInput_Unavailable(t *testing.T) {
	in := NewInput(nil, "en-US")
	rec := &flagRecorder{}
	in.SetStateHandler(rec.set)

	called := false
	s, err := in.StartListening(func(string) { called = true })

	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrRecognitionUnavailable)
	assert.False(t, called)
	assert.Empty(t, rec.get())

	in.StopListening()
	assert.Empty(t, rec.get())
}

func TestInput_RejectsConcurrentSession(t *testing.T) {
	host := &fakeRecognizer{available: true}
	in := NewInput(host, "en-US")

	first, err := in.StartListening(nil)
	require.NoError(t, err)

	_, err = in.StartListening(nil)
	assert.ErrorIs(t, err, ErrAlreadyListening)
	assert.Len(t, host.sessions, 1)

	first.Started()
	first.Ended()

	_, err = in.StartListening(nil)
	assert.NoError(t, err, "a new session may start after the previous one ends")
}

func TestInput_StartFailure(t *testing.T) {
	host := &fakeRecognizer{available: true, startErr: errors.New("microphone busy")}
	in := NewInput(host, "en-US")
	rec := &flagRecorder{}
	in.SetStateHandler(rec.set)

	s, err := in.StartListening(nil)
	assert.Nil(t, s)
	assert.Error(t, err)
	assert.Nil(t, in.Current())
	for _, v := range rec.get() {
		assert.False(t, v)
	}
}

func TestInput_ErrorClearsListening(t *testing.T) {
	host := &fakeRecognizer{available: true}
	in := NewInput(host, "en-US")
	rec := &flagRecorder{}
	in.SetStateHandler(rec.set)

	s, err := in.StartListening(nil)
	require.NoError(t, err)
	s.Started()
	s.Failed(errors.New("no-speech"))

	assert.Equal(t, []bool{true, false}, rec.get())
	assert.Nil(t, in.Current())
}

func TestInput_StopListening(t *testing.T) {
	host := &fakeRecognizer{available: true}
	in := NewInput(host, "en-US")
	rec := &flagRecorder{}
	in.SetStateHandler(rec.set)

	s, err := in.StartListening(nil)
	require.NoError(t, err)
	s.Started()

	ended := false
	s.OnEnd(func() { ended = true })

	in.StopListening()
	assert.Equal(t, 1, host.stops)
	assert.Equal(t, []bool{true, false}, rec.get())
	assert.True(t, ended)
	assert.True(t, s.Done())

	s.Ended()
	assert.Equal(t, []bool{true, false}, rec.get())
}
