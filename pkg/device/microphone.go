package device

import (
	"context"
	"os"
	"strings"

	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// FileMicrophone provides a recording stored in an audio file
type FileMicrophone struct {
	path string
}

// NewFileMicrophone creates a microphone reading path
func NewFileMicrophone(path string) *FileMicrophone {
	return &FileMicrophone{path: path}
}

func (m *FileMicrophone) Record(ctx context.Context) ([]byte, string, error) {
	if m.path == "" {
		return nil, "", model.Device(model.CodeMicrophoneUnsupported, nil, "no recording is configured")
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, "", model.Device(model.CodeMicrophoneUnsupported, err, "failed to read recording",
			goerr.V("path", m.path))
	}

	mimeType := DetectMIMEType(data)
	if !strings.HasPrefix(mimeType, "audio/") && mimeType != "application/ogg" {
		return nil, "", model.Validation(model.CodeInvalidFileType, "not an audio file",
			goerr.V("path", m.path), goerr.V("mime_type", mimeType))
	}
	return data, mimeType, nil
}
