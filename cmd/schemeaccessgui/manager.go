package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"

	"schemeaccess/pkg/accessibility"
)

// commands maps shortcut names to API endpoints.
var commands = map[string]string{
	"contrast":      "/api/accessibility/contrast/toggle",
	"font-increase": "/api/accessibility/font/increase",
	"font-decrease": "/api/accessibility/font/decrease",
	"font-reset":    "/api/accessibility/font/reset",
	"stop":          "/api/speech/stop",
}

// Manager keeps the accessibility server running and mirrors its document
// state onto the portal page.
type Manager struct {
	serverAddr string
	serverBin  string
	interval   time.Duration
	applyFunc  func(string)
	logFunc    func(string)
	client     *http.Client

	mu          sync.Mutex
	serverCmd   *exec.Cmd
	applied     bool
	lastVersion uint64
}

func NewManager(serverAddr, serverBin string, interval time.Duration, apply, log func(string)) *Manager {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Manager{
		serverAddr: serverAddr,
		serverBin:  serverBin,
		interval:   interval,
		applyFunc:  apply,
		logFunc:    log,
		client:     &http.Client{Timeout: 2 * time.Second},
	}
}

func (m *Manager) log(msg string) {
	if m.logFunc != nil {
		m.logFunc(msg)
	}
}

// Start brings up the server if needed and then polls the document state.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		if !m.isServerReady() {
			m.log("> Server not running. Starting " + m.serverBin + "...")
			go m.runServer()
		} else {
			m.log("> Server already active.")
		}

		m.log("> Waiting for server...")
		ready := false
		for i := 0; i < 30 && !ready; i++ {
			if ready = m.isServerReady(); !ready {
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
			}
		}
		if !ready {
			m.log("> Error: Server timed out.")
			return
		}
		m.log("> Server ready!")

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			if err := m.syncDocument(ctx); err != nil && ctx.Err() == nil {
				m.log(fmt.Sprintf("> Document sync failed: %v", err))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// PageLoaded forces the next sync to re-apply the state to a fresh page.
func (m *Manager) PageLoaded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied = false
}

// syncDocument applies the server's document state when it changed since
// the last apply.
func (m *Manager) syncDocument(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url("/api/accessibility/document"), http.NoBody)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("document state: status %d", resp.StatusCode)
	}

	var st accessibility.RootState
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return fmt.Errorf("decode document state: %w", err)
	}

	m.mu.Lock()
	if m.applied && st.Version == m.lastVersion {
		m.mu.Unlock()
		return nil
	}
	m.applied = true
	m.lastVersion = st.Version
	m.mu.Unlock()

	if m.applyFunc != nil {
		m.applyFunc(st.Script())
	}
	return nil
}

// ReadPage sends the page HTML to be read aloud.
func (m *Manager) ReadPage(html string) error {
	body, err := json.Marshal(map[string]string{"html": html})
	if err != nil {
		return err
	}
	return m.post("/api/speech/read-page", body)
}

// Command runs a named shortcut.
func (m *Manager) Command(name string) error {
	path, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	return m.post(path, nil)
}

func (m *Manager) post(path string, body []byte) error {
	resp, err := m.client.Post(m.url(path), "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// Stop shuts the server down if this manager started it.
func (m *Manager) Stop() {
	m.mu.Lock()
	started := m.serverCmd != nil && m.serverCmd.Process != nil
	m.mu.Unlock()
	if !started {
		return
	}

	fmt.Println("> Closing: Sending shutdown signal to server...")
	if err := m.post("/api/shutdown", nil); err != nil {
		fmt.Printf("> API shutdown failed: %v\n", err)
		return
	}
	fmt.Println("> Shutdown command sent successfully.")
	time.Sleep(500 * time.Millisecond)
}

func (m *Manager) runServer() {
	cmd := exec.Command(m.serverBin)
	m.mu.Lock()
	m.serverCmd = cmd
	m.mu.Unlock()

	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()
	if err := cmd.Start(); err != nil {
		m.log(fmt.Sprintf("Server failed to start: %v", err))
		return
	}
	go m.streamReader(stdout)
	go m.streamReader(stderr)

	if err := cmd.Wait(); err != nil {
		m.log(fmt.Sprintf("Server exited with error: %v", err))
	}
}

func (m *Manager) streamReader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m.log(scanner.Text())
	}
}

func (m *Manager) url(path string) string {
	return "http://" + m.resolveAddr() + path
}

func (m *Manager) resolveAddr() string {
	addr := m.serverAddr
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	if strings.HasPrefix(addr, "localhost:") {
		return strings.Replace(addr, "localhost:", "127.0.0.1:", 1)
	}
	return addr
}

func (m *Manager) isServerReady() bool {
	resp, err := m.client.Get(m.url("/api/version"))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
