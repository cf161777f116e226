// Package hotkey registers the global shortcut that toggles overlay
// interaction.
package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// ErrInvalidShortcut is returned for shortcuts ParseShortcut cannot use.
var ErrInvalidShortcut = errors.New("invalid shortcut")

var modifierOrder = []string{"ctrl", "shift", "alt", "cmd"}

var aliases = map[string]string{
	"control":  "ctrl",
	"command":  "cmd",
	"super":    "cmd",
	"meta":     "cmd",
	"option":   "alt",
	"opt":      "alt",
	"spacebar": "space",
	"escape":   "esc",
	"return":   "enter",
}

// ParseShortcut turns "ctrl+shift+space" into the key list gohook expects:
// the key first, then its modifiers in a fixed order.
func ParseShortcut(shortcut string) ([]string, error) {
	var (
		key  string
		mods []string
	)
	for part := range strings.SplitSeq(shortcut, "+") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidShortcut, shortcut)
		}
		if alias, ok := aliases[name]; ok {
			name = alias
		}

		if slices.Contains(modifierOrder, name) {
			if !slices.Contains(mods, name) {
				mods = append(mods, name)
			}
			continue
		}
		if key != "" {
			return nil, fmt.Errorf("%w: %q has more than one key", ErrInvalidShortcut, shortcut)
		}
		key = name
	}
	if key == "" {
		return nil, fmt.Errorf("%w: %q has no key", ErrInvalidShortcut, shortcut)
	}

	slices.SortFunc(mods, func(a, b string) int {
		return slices.Index(modifierOrder, a) - slices.Index(modifierOrder, b)
	})
	return append([]string{key}, mods...), nil
}

// Manager listens for one global shortcut.
type Manager struct {
	keys      []string
	onTrigger func()

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewManager creates a Manager that calls onTrigger whenever shortcut is
// pressed. onTrigger runs on the hook goroutine and should return quickly.
func NewManager(shortcut string, onTrigger func()) (*Manager, error) {
	keys, err := ParseShortcut(shortcut)
	if err != nil {
		return nil, err
	}
	return &Manager{keys: keys, onTrigger: onTrigger}, nil
}

// Keys returns the parsed key list.
func (m *Manager) Keys() []string {
	return slices.Clone(m.keys)
}

// Start registers the shortcut and begins processing events.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	hook.Register(hook.KeyDown, m.keys, func(hook.Event) {
		slog.Debug("hotkey pressed", "keys", m.keys)
		m.onTrigger()
	})

	m.done = make(chan struct{})
	m.running = true
	events := hook.Start()
	go func() {
		defer close(m.done)
		<-hook.Process(events)
	}()

	slog.Info("hotkey registered", "keys", strings.Join(m.keys, "+"))
	return nil
}

// Stop unregisters the shortcut and waits for the event loop to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	hook.End()
	<-m.done
	m.running = false
}
