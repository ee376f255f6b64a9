package notify

import (
	"context"
	"os/exec"
	"time"

	ferrors "git.home.luguber.info/inful/breaktimed/internal/foundation/errors"
)

// soundPlayers is the playback command preference order.
var soundPlayers = []string{"pw-play", "paplay", "aplay"}

const defaultChime = "/usr/share/sounds/freedesktop/stereo/complete.oga"

// SoundNotifier plays a chime through whichever audio player the system has.
// A machine with no player configured is not an error; the channel just does
// nothing.
type SoundNotifier struct {
	player string
	file   string
}

// NewSoundNotifier resolves the player once at construction. file overrides
// the default freedesktop chime.
func NewSoundNotifier(file string) *SoundNotifier {
	if file == "" {
		file = defaultChime
	}
	n := &SoundNotifier{file: file}
	for _, p := range soundPlayers {
		if _, err := exec.LookPath(p); err == nil {
			n.player = p
			break
		}
	}
	return n
}

func (n *SoundNotifier) Name() string { return "sound" }

func (n *SoundNotifier) Warn(ctx context.Context, _ time.Duration) error {
	return n.play(ctx)
}

func (n *SoundNotifier) BreakStarted(ctx context.Context, _ time.Duration) error {
	return n.play(ctx)
}

func (n *SoundNotifier) BreakEnded(ctx context.Context) error {
	return n.play(ctx)
}

func (n *SoundNotifier) play(ctx context.Context) error {
	if n.player == "" {
		return nil
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(pctx, n.player, n.file).Run(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNotify, "sound playback failed").
			WithContext("player", n.player).
			Build()
	}
	return nil
}
