package accessibility

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoot(t *testing.T) {
	r := NewRoot()
	assert.Equal(t, RootState{Classes: []string{}}, r.State())

	r.SetHighContrast(true)
	r.SetFontSize(120)
	st := r.State()
	assert.Equal(t, []string{HighContrastClass}, st.Classes)
	assert.Equal(t, "120%", st.FontSize)
	assert.Equal(t, uint64(2), st.Version)

	// Re-applying the same values does not bump the version.
	r.SetHighContrast(true)
	r.SetFontSize(120)
	assert.Equal(t, uint64(2), r.State().Version)

	r.SetHighContrast(false)
	assert.Empty(t, r.State().Classes)
	assert.Equal(t, uint64(3), r.State().Version)
}

func TestRoot_Script(t *testing.T) {
	r := NewRoot()
	r.SetHighContrast(true)
	r.SetFontSize(90)

	js := r.Script()
	assert.True(t, strings.HasPrefix(js, "(function(s){"))
	assert.Contains(t, js, `d.classList.toggle("high-contrast"`)
	assert.Contains(t, js, `"fontSize":"90%"`)
	assert.Contains(t, js, `"classes":["high-contrast"]`)
}

func TestRootState_Script(t *testing.T) {
	js := RootState{}.Script()
	assert.Contains(t, js, `"classes":[]`, "nil classes render as an empty list")
	assert.Contains(t, js, `"fontSize":""`)
}
