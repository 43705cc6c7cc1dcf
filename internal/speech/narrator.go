// Package speech reads recipes aloud.
package speech

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"

	"recipic/internal/recipe"
)

// ErrNoSpeechEngine is returned when no text-to-speech command is installed.
var ErrNoSpeechEngine = errors.New("no text-to-speech engine found")

// Utterance renders r as the sentence that is spoken for it.
func Utterance(r recipe.Recipe) string {
	var b strings.Builder
	b.WriteString("Recipe for ")
	b.WriteString(r.Title)
	b.WriteString(". Ingredients: ")
	b.WriteString(strings.Join(r.Ingredients, ", "))
	b.WriteString(". Instructions: ")
	b.WriteString(strings.Join(r.Instructions, " "))
	return b.String()
}

// Speaker plays text. Say blocks until playback ends or ctx is cancelled.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// Narrator plays at most one utterance at a time. Starting a new one stops
// the previous one; nothing is queued.
type Narrator struct {
	speaker Speaker
	log     *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNarrator creates a Narrator that plays through speaker.
func NewNarrator(speaker Speaker, log *zap.Logger) *Narrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Narrator{speaker: speaker, log: log}
}

// Speak stops the current utterance, waits for it to end, then starts
// reading r in the background. The returned channel is closed when
// playback ends.
func (n *Narrator) Speak(ctx context.Context, r recipe.Recipe) <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.stopLocked()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	n.cancel = cancel
	n.done = done

	text := Utterance(r)
	go func() {
		defer close(done)
		defer cancel()
		if err := n.speaker.Say(ctx, text); err != nil && ctx.Err() == nil {
			n.log.Warn("speech playback failed", zap.String("title", r.Title), zap.Error(err))
		}
	}()
	return done
}

// Stop cancels the current utterance, if any, and waits for it to end.
func (n *Narrator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
}

func (n *Narrator) stopLocked() {
	if n.cancel == nil {
		return
	}
	n.cancel()
	<-n.done
	n.cancel = nil
	n.done = nil
}

// ExecSpeaker speaks through a local command such as espeak or say.
type ExecSpeaker struct {
	Command string
	Args    []string
}

// NewExecSpeaker picks the speech command available on this machine.
func NewExecSpeaker() (*ExecSpeaker, error) {
	candidates := []string{"espeak-ng", "espeak", "spd-say"}
	if runtime.GOOS == "darwin" {
		candidates = []string{"say"}
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return &ExecSpeaker{Command: path}, nil
		}
	}
	return nil, ErrNoSpeechEngine
}

// Say runs the command with text as its last argument. Cancelling ctx kills
// the process.
func (s *ExecSpeaker) Say(ctx context.Context, text string) error {
	args := append(append([]string{}, s.Args...), text)
	return exec.CommandContext(ctx, s.Command, args...).Run()
}
