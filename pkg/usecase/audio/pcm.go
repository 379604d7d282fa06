package audio

import (
	"encoding/binary"

	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// DecodePCM16 decodes headerless signed 16-bit little-endian mono samples. A
// trailing odd byte is dropped.
func DecodePCM16(data []byte, sampleRate int) (*model.Clip, error) {
	n := len(data) / 2
	if n == 0 {
		return nil, goerr.New("no audio samples",
			goerr.V("bytes", len(data)),
			goerr.T(model.TagDecode),
			model.WithCode(model.CodeSpeechFailed),
		)
	}

	samples := make([]int, n)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return model.NewClip(samples, sampleRate), nil
}
