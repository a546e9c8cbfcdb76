package speech

import (
	"sync"

	"github.com/google/uuid"
)

type phase int

const (
	phasePending phase = iota
	phaseActive
	phaseDone
)

// lifecycle tracks pending -> active -> done. Terminal transitions happen once;
// events after done are dropped.
type lifecycle struct {
	mu    sync.Mutex
	phase phase
}

func (l *lifecycle) start() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase != phasePending {
		return false
	}
	l.phase = phaseActive
	return true
}

func (l *lifecycle) finish() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase == phaseDone {
		return false
	}
	l.phase = phaseDone
	return true
}

func (l *lifecycle) live() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase != phaseDone
}

func (l *lifecycle) active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase == phaseActive
}

// Utterance is one request to synthesize Text with the given Rate, Volume and Lang.
type Utterance struct {
	ID     string
	Text   string
	Rate   float64
	Volume float64
	Lang   string

	lc       lifecycle
	hmu      sync.Mutex
	onStart  []func()
	onEnd    []func()
	onError  []func(error)
	finalErr error
}

// NewUtterance creates a pending utterance.
func NewUtterance(text string, rate, volume float64, lang string) *Utterance {
	if lang == "" {
		lang = DefaultLanguage
	}
	return &Utterance{
		ID:     uuid.New().String(),
		Text:   text,
		Rate:   rate,
		Volume: volume,
		Lang:   lang,
	}
}

// OnStart registers fn to run when the host starts speaking.
func (u *Utterance) OnStart(fn func()) {
	u.hmu.Lock()
	defer u.hmu.Unlock()
	u.onStart = append(u.onStart, fn)
}

// OnEnd registers fn to run when the utterance finishes normally.
func (u *Utterance) OnEnd(fn func()) {
	u.hmu.Lock()
	defer u.hmu.Unlock()
	u.onEnd = append(u.onEnd, fn)
}

// OnError registers fn to run when the utterance fails or is canceled.
func (u *Utterance) OnError(fn func(error)) {
	u.hmu.Lock()
	defer u.hmu.Unlock()
	u.onError = append(u.onError, fn)
}

// Started is called by the host when audio output begins.
func (u *Utterance) Started() {
	if !u.lc.start() {
		return
	}
	u.hmu.Lock()
	handlers := append([]func(){}, u.onStart...)
	u.hmu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

// Ended is called by the host when audio output completes.
func (u *Utterance) Ended() {
	if !u.lc.finish() {
		return
	}
	u.hmu.Lock()
	handlers := append([]func(){}, u.onEnd...)
	u.hmu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

// Failed is called by the host when synthesis or playback fails.
func (u *Utterance) Failed(err error) {
	if !u.lc.finish() {
		return
	}
	u.hmu.Lock()
	u.finalErr = err
	handlers := append([]func(error){}, u.onError...)
	u.hmu.Unlock()
	for _, fn := range handlers {
		fn(err)
	}
}

// Done reports whether the utterance has ended or failed.
func (u *Utterance) Done() bool { return !u.lc.live() }

// Speaking reports whether the utterance has started and not yet finished.
func (u *Utterance) Speaking() bool { return u.lc.active() }

// Err returns the failure reason, if any.
func (u *Utterance) Err() error {
	u.hmu.Lock()
	defer u.hmu.Unlock()
	return u.finalErr
}

// RecognitionConfig configures a capture session.
type RecognitionConfig struct {
	Continuous     bool
	InterimResults bool
	Lang           string
}

// Result is one transcript candidate.
type Result struct {
	Transcript string
	Confidence float64
	IsFinal    bool
}

// ResultEvent carries the ordered results recognized so far in a session.
type ResultEvent struct {
	Results []Result
}

// Latest returns the most recent result.
func (e ResultEvent) Latest() (Result, bool) {
	if len(e.Results) == 0 {
		return Result{}, false
	}
	return e.Results[len(e.Results)-1], true
}

// CaptureSession is one request to transcribe spoken audio.
type CaptureSession struct {
	ID     string
	Config RecognitionConfig

	lc       lifecycle
	hmu      sync.Mutex
	onStart  []func()
	onResult []func(ResultEvent)
	onEnd    []func()
	onError  []func(error)
}

// NewCaptureSession creates a pending capture session.
func NewCaptureSession(cfg RecognitionConfig) *CaptureSession {
	if cfg.Lang == "" {
		cfg.Lang = DefaultLanguage
	}
	return &CaptureSession{
		ID:     uuid.New().String(),
		Config: cfg,
	}
}

func (s *CaptureSession) OnStart(fn func()) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.onStart = append(s.onStart, fn)
}

func (s *CaptureSession) OnResult(fn func(ResultEvent)) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.onResult = append(s.onResult, fn)
}

func (s *CaptureSession) OnEnd(fn func()) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.onEnd = append(s.onEnd, fn)
}

func (s *CaptureSession) OnError(fn func(error)) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.onError = append(s.onError, fn)
}

// Started is called by the host when capture begins.
func (s *CaptureSession) Started() {
	if !s.lc.start() {
		return
	}
	s.hmu.Lock()
	handlers := append([]func(){}, s.onStart...)
	s.hmu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

// Result is called by the host for each recognition result.
func (s *CaptureSession) Result(ev ResultEvent) {
	if !s.lc.live() {
		return
	}
	s.hmu.Lock()
	handlers := append([]func(ResultEvent){}, s.onResult...)
	s.hmu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

// Ended is called by the host when capture ends.
func (s *CaptureSession) Ended() {
	if !s.lc.finish() {
		return
	}
	s.hmu.Lock()
	handlers := append([]func(){}, s.onEnd...)
	s.hmu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

// Failed is called by the host when capture fails.
func (s *CaptureSession) Failed(err error) {
	if !s.lc.finish() {
		return
	}
	s.hmu.Lock()
	handlers := append([]func(error){}, s.onError...)
	s.hmu.Unlock()
	for _, fn := range handlers {
		fn(err)
	}
}

// Done reports whether the session has ended or failed.
func (s *CaptureSession) Done() bool { return !s.lc.live() }
