package model

import (
	"time"

	"github.com/go-audio/audio"
)

// SpeechSampleRate is the sample rate of synthesized speech
const SpeechSampleRate = 24000

// Clip is decoded mono 16-bit audio
type Clip struct {
	Buffer *audio.IntBuffer
}

// NewClip wraps mono 16-bit samples recorded at sampleRate
func NewClip(samples []int, sampleRate int) *Clip {
	return &Clip{
		Buffer: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			Data:           samples,
			SourceBitDepth: 16,
		},
	}
}

// SampleRate returns the sample rate of the clip, or 0 if it has no format
func (c *Clip) SampleRate() int {
	if c.Buffer == nil || c.Buffer.Format == nil {
		return 0
	}
	return c.Buffer.Format.SampleRate
}

// Duration returns the playback length of the clip
func (c *Clip) Duration() time.Duration {
	rate := c.SampleRate()
	if rate <= 0 {
		return 0
	}
	return time.Duration(c.Buffer.NumFrames()) * time.Second / time.Duration(rate)
}
