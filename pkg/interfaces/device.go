package interfaces

import (
	"context"

	"github.com/m-mizutani/agriai/pkg/model"
)

// Camera delivers still frames
type Camera interface {
	// Watch calls onFrame for every new frame until ctx is done
	Watch(ctx context.Context, onFrame func(model.Frame)) error
}

// Microphone records speech
type Microphone interface {
	Record(ctx context.Context) (audio []byte, mimeType string, err error)
}

// Geolocator reports the current position
type Geolocator interface {
	Locate(ctx context.Context) (model.Coordinates, error)
}
