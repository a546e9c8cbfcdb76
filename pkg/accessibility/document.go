package accessibility

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// HighContrastClass is the root class toggled by high-contrast mode.
const HighContrastClass = "high-contrast"

// Document is the root element the visual settings are applied to.
type Document interface {
	SetHighContrast(on bool)
	SetFontSize(percent int)
}

// RootState is the rendered state of a Root.
type RootState struct {
	Classes  []string `json:"classes"`
	FontSize string   `json:"fontSize"`
	Version  uint64   `json:"version"`
}

// Root is an in-process document root. Consumers read its state over the
// API and mirror it onto the real document.
type Root struct {
	mu       sync.RWMutex
	classes  map[string]bool
	fontSize string
	version  uint64
}

// NewRoot returns a root with no classes and no font-size override.
func NewRoot() *Root {
	return &Root{classes: make(map[string]bool)}
}

func (r *Root) SetHighContrast(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.classes[HighContrastClass] == on {
		return
	}
	if on {
		r.classes[HighContrastClass] = true
	} else {
		delete(r.classes, HighContrastClass)
	}
	r.version++
}

func (r *Root) SetFontSize(percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	size := fmt.Sprintf("%d%%", percent)
	if r.fontSize == size {
		return
	}
	r.fontSize = size
	r.version++
}

// State returns the root's classes (sorted) and font-size style.
func (r *Root) State() RootState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	classes := make([]string, 0, len(r.classes))
	for c := range r.classes {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return RootState{Classes: classes, FontSize: r.fontSize, Version: r.version}
}

// Script renders JavaScript that applies the current state to
// document.documentElement.
func (r *Root) Script() string {
	return r.State().Script()
}

// Script renders JavaScript that applies s to document.documentElement.
// An empty FontSize clears the override.
func (s RootState) Script() string {
	if s.Classes == nil {
		s.Classes = []string{}
	}
	data, _ := json.Marshal(s)
	return fmt.Sprintf(`(function(s){var d=document.documentElement;`+
		`d.classList.toggle(%q,s.classes.indexOf(%q)>=0);`+
		`d.style.fontSize=s.fontSize;})(%s);`, HighContrastClass, HighContrastClass, data)
}
