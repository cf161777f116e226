package overlay

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"

	"go.aimuz.me/orb/internal/types"
)

// DefaultRevealSpeed is the delay between revealed characters.
const DefaultRevealSpeed = 30 * time.Millisecond

// Reveal returns the growing prefixes of text, one grapheme cluster at a time.
// The text is NFC-normalized first so a base letter and its combining mark
// appear together.
func Reveal(text string) iter.Seq[string] {
	text = norm.NFC.String(text)
	return func(yield func(string) bool) {
		g := uniseg.NewGraphemes(text)
		for g.Next() {
			_, end := g.Positions()
			if !yield(text[:end]) {
				return
			}
		}
	}
}

// Caption shows user and assistant captions. An assistant caption is
// revealed character by character; a newer caption of either role cancels
// the reveal in progress before anything else is shown.
type Caption struct {
	view  Presenter
	speed atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCaption creates a Caption revealing at speed per character.
func NewCaption(view Presenter, speed time.Duration) *Caption {
	c := &Caption{view: view}
	c.SetSpeed(speed)
	return c
}

// SetSpeed changes the reveal speed for captions started afterwards.
func (c *Caption) SetSpeed(speed time.Duration) {
	if speed <= 0 {
		speed = DefaultRevealSpeed
	}
	c.speed.Store(int64(speed))
}

// Set shows text for role. Empty text is ignored.
func (c *Caption) Set(role types.CaptionRole, text string) {
	if text == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	switch role {
	case types.RoleUser:
		c.view.ShowCaption(types.RoleAI, "")
		c.view.ShowCaption(types.RoleUser, text)
	case types.RoleAI:
		c.view.ShowCaption(types.RoleUser, "")
		c.startLocked(text)
	}
}

// Stop cancels the reveal in progress, if any, and waits for it to finish.
func (c *Caption) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// wait blocks until the current reveal has shown its last character.
func (c *Caption) wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Caption) startLocked(text string) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.done = cancel, done

	speed := time.Duration(c.speed.Load())
	go func() {
		defer close(done)

		c.view.ShowCaption(types.RoleAI, "")

		ticker := time.NewTicker(speed)
		defer ticker.Stop()

		first := true
		for prefix := range Reveal(text) {
			if !first {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
			first = false
			c.view.ShowCaption(types.RoleAI, prefix)
		}
	}()
}

func (c *Caption) stopLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel, c.done = nil, nil
}
