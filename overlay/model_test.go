package overlay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.aimuz.me/orb/internal/types"
)

func TestModel_ApplyActivatesExactlyOneState(t *testing.T) {
	view := newRecordingPresenter()
	m := NewModel(view, nil)

	// Walk every state twice so each one is entered from a different state.
	for _, round := range []string{"first", "second"} {
		for _, state := range types.States() {
			t.Run(round+"/"+state.String(), func(t *testing.T) {
				if m.Current() == state {
					m.Render()
				} else {
					changed, err := m.Apply(state)
					require.NoError(t, err)
					assert.True(t, changed)
				}

				assert.Equal(t, []types.OverlayState{state}, view.activeStates())
				assert.Equal(t, DefaultLabels()[state], view.label)
				assert.Equal(t, state != types.StateError, view.online)
				assert.Equal(t, state, m.Current())
			})
		}
	}
}

func TestModel_ApplyIsIdempotent(t *testing.T) {
	view := newRecordingPresenter()
	m := NewModel(view, nil)

	changed, err := m.Apply(types.StateSpeaking)
	require.NoError(t, err)
	require.True(t, changed)
	shows := view.showCount()

	changed, err = m.Apply(types.StateSpeaking)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, shows, view.showCount(), "second apply must not redraw")
}

func TestModel_ApplyRejectsUnknownState(t *testing.T) {
	view := newRecordingPresenter()
	m := NewModel(view, nil)

	_, err := m.Apply(types.StateThinking)
	require.NoError(t, err)
	shows := view.showCount()

	changed, err := m.Apply(types.OverlayState(42))
	assert.False(t, changed)
	assert.True(t, errors.Is(err, types.ErrUnknownState))
	assert.Equal(t, types.StateThinking, m.Current())
	assert.Equal(t, shows, view.showCount())
	assert.Equal(t, []types.OverlayState{types.StateThinking}, view.activeStates())
}

func TestModel_CustomLabels(t *testing.T) {
	view := newRecordingPresenter()
	m := NewModel(view, Labels{types.StateListening: "Listening..."})

	_, err := m.Apply(types.StateListening)
	require.NoError(t, err)
	assert.Equal(t, "Listening...", view.label)

	_, err = m.Apply(types.StateError)
	require.NoError(t, err)
	assert.Equal(t, "SYSTEM ERROR", view.label, "missing labels fall back to defaults")

	m.SetLabels(Labels{types.StateError: "Error"})
	assert.Equal(t, "Error", view.label)
}
