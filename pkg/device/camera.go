package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gabriel-vasile/mimetype"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const defaultSettle = 300 * time.Millisecond

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".heic"}

// Camera treats a capture directory as a camera: every image file written into
// it becomes a frame once no write happened for the settle duration.
type Camera struct {
	dir    string
	settle time.Duration
}

// CameraOption is a functional option for Camera
type CameraOption func(*Camera)

// WithSettle sets how long a file must stay unchanged before it is read
func WithSettle(d time.Duration) CameraOption {
	return func(c *Camera) {
		c.settle = d
	}
}

// NewCamera opens the capture directory dir
func NewCamera(dir string, opts ...CameraOption) (*Camera, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, model.Device(model.CodeCameraUnsupported, err, "capture directory is not available",
			goerr.V("dir", dir))
	}

	c := &Camera{dir: dir, settle: defaultSettle}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func isImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Watch calls onFrame for every new image in the capture directory until ctx is done
func (c *Camera) Watch(ctx context.Context, onFrame func(model.Frame)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return model.Device(model.CodeCameraError, err, "failed to create watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(c.dir); err != nil {
		return model.Device(model.CodeCameraError, err, "failed to watch capture directory",
			goerr.V("dir", c.dir))
	}

	logger := logging.From(ctx).With("dir", c.dir)
	logger.Debug("camera watching")

	var (
		mutex   sync.Mutex
		pending = make(map[string]*time.Timer)
		wg      sync.WaitGroup
	)
	defer func() {
		mutex.Lock()
		for _, timer := range pending {
			if timer.Stop() {
				wg.Done()
			}
		}
		mutex.Unlock()
		wg.Wait()
	}()

	deliver := func(path string) {
		defer wg.Done()
		mutex.Lock()
		delete(pending, path)
		mutex.Unlock()

		if ctx.Err() != nil {
			return
		}
		frame, err := ReadFrame(path)
		if err != nil {
			logger.Warn("failed to read frame", "path", path, logging.ErrAttr(err))
			return
		}
		onFrame(*frame)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isImageFile(event.Name) || !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			mutex.Lock()
			if timer, ok := pending[event.Name]; ok && timer.Stop() {
				timer.Reset(c.settle)
			} else if !ok {
				path := event.Name
				wg.Add(1)
				pending[path] = time.AfterFunc(c.settle, func() { deliver(path) })
			}
			mutex.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("camera watcher error", logging.ErrAttr(err))
		}
	}
}

// ReadFrame loads an image file as a frame. Files that are not images are
// INVALID_FILE_TYPE.
func ReadFrame(path string) (*model.Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, model.Validation(model.CodeNoImage, "image file not found", goerr.V("path", path))
		}
		return nil, model.Device(model.CodeCameraError, err, "failed to read image", goerr.V("path", path))
	}

	mimeType := DetectMIMEType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, model.Validation(model.CodeInvalidFileType, "not an image file",
			goerr.V("path", path), goerr.V("mime_type", mimeType))
	}

	return &model.Frame{Data: data, MIMEType: mimeType, Source: path}, nil
}

// DetectMIMEType sniffs the content type of data
func DetectMIMEType(data []byte) string {
	mediaType, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return mediaType
}
