package interfaces

import (
	"context"

	"github.com/m-mizutani/agriai/pkg/model"
)

// Player acquires an audio output and starts playing a clip on it
type Player interface {
	Play(ctx context.Context, clip *model.Clip) (Playback, error)
}

// Playback is one acquired, playing audio resource
type Playback interface {
	// Done is closed when the clip ends naturally or the playback is closed
	Done() <-chan struct{}
	// Close stops playback and releases the resource. It is safe to call more than once.
	Close() error
}
