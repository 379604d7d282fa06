package adapter

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-audio/wav"
	"github.com/m-mizutani/agriai/pkg/interfaces"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// WriteWAV encodes clip as a 16-bit PCM mono RIFF/WAVE stream
func WriteWAV(w io.WriteSeeker, clip *model.Clip) error {
	const (
		bitDepth     = 16
		formatPCM    = 1
		channelCount = 1
	)
	enc := wav.NewEncoder(w, clip.SampleRate(), bitDepth, channelCount, formatPCM)
	if err := enc.Write(clip.Buffer); err != nil {
		return goerr.Wrap(err, "failed to write wav data")
	}
	if err := enc.Close(); err != nil {
		return goerr.Wrap(err, "failed to finish wav data")
	}
	return nil
}

func writeWAVFile(path string, clip *model.Clip) error {
	f, err := os.Create(path)
	if err != nil {
		return goerr.Wrap(err, "failed to create wav file", goerr.V("path", path))
	}
	if err := WriteWAV(f, clip); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return goerr.Wrap(err, "failed to close wav file", goerr.V("path", path))
	}
	return nil
}

// ExecPlayer plays clips by running an external audio command (aplay, afplay)
// on a temporary WAV file. The clip ends when the process exits.
type ExecPlayer struct {
	command string
	args    []string
	tempDir string
}

// ExecPlayerOption is a functional option for ExecPlayer
type ExecPlayerOption func(*ExecPlayer)

// WithPlayerCommand overrides the playback command. The WAV path is appended to args.
func WithPlayerCommand(command string, args ...string) ExecPlayerOption {
	return func(p *ExecPlayer) {
		p.command = command
		p.args = args
	}
}

// WithPlayerTempDir sets the directory of temporary WAV files
func WithPlayerTempDir(dir string) ExecPlayerOption {
	return func(p *ExecPlayer) {
		p.tempDir = dir
	}
}

// NewExecPlayer creates a player using the first available command of aplay and afplay
func NewExecPlayer(opts ...ExecPlayerOption) (*ExecPlayer, error) {
	p := &ExecPlayer{}
	for _, opt := range opts {
		opt(p)
	}

	if p.command == "" {
		for _, candidate := range []string{"aplay", "afplay"} {
			if _, err := exec.LookPath(candidate); err == nil {
				p.command = candidate
				break
			}
		}
	}
	if p.command == "" {
		return nil, model.Device(model.CodeSpeechFailed, nil, "no audio player command found")
	}
	if p.command == "aplay" && len(p.args) == 0 {
		p.args = []string{"-q"}
	}
	return p, nil
}

func (p *ExecPlayer) Play(ctx context.Context, clip *model.Clip) (interfaces.Playback, error) {
	f, err := os.CreateTemp(p.tempDir, "agriai-*.wav")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create temporary wav file")
	}
	path := f.Name()
	_ = f.Close()

	if err := writeWAVFile(path, clip); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	args := append(append([]string{}, p.args...), path)
	cmd := exec.Command(p.command, args...)
	if err := cmd.Start(); err != nil {
		_ = os.Remove(path)
		return nil, goerr.Wrap(err, "failed to start audio player", goerr.V("command", p.command))
	}

	pb := &execPlayback{
		cmd:  cmd,
		path: path,
		done: make(chan struct{}),
	}
	go pb.wait(ctx)
	return pb, nil
}

type execPlayback struct {
	cmd  *exec.Cmd
	path string

	done      chan struct{}
	closeOnce sync.Once
	mutex     sync.Mutex
	stopped   bool
}

func (x *execPlayback) wait(ctx context.Context) {
	err := x.cmd.Wait()

	x.mutex.Lock()
	stopped := x.stopped
	x.mutex.Unlock()

	var exitErr *exec.ExitError
	if err != nil && !stopped && !errors.As(err, &exitErr) {
		logging.From(ctx).Warn("audio player exited abnormally", logging.ErrAttr(err))
	}
	x.release(ctx)
}

func (x *execPlayback) release(ctx context.Context) {
	x.closeOnce.Do(func() {
		if err := os.Remove(x.path); err != nil && !os.IsNotExist(err) {
			logging.From(ctx).Warn("failed to remove wav file", "path", x.path, logging.ErrAttr(err))
		}
		close(x.done)
	})
}

func (x *execPlayback) Done() <-chan struct{} {
	return x.done
}

func (x *execPlayback) Close() error {
	x.mutex.Lock()
	if x.stopped {
		x.mutex.Unlock()
		<-x.done
		return nil
	}
	x.stopped = true
	x.mutex.Unlock()

	select {
	case <-x.done:
		return nil
	default:
	}

	if err := x.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return goerr.Wrap(err, "failed to stop audio player")
	}
	<-x.done
	return nil
}

// WAVFilePlayer writes every clip to a WAV file instead of a sound device.
// Playback lasts for the clip's duration unless closed earlier.
type WAVFilePlayer struct {
	dir      string
	realtime bool
	mutex    sync.Mutex
	seq      int
}

// NewWAVFilePlayer creates a WAVFilePlayer writing into dir. If realtime is
// false, a playback ends as soon as the file is written.
func NewWAVFilePlayer(dir string, realtime bool) (*WAVFilePlayer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create audio output directory", goerr.V("dir", dir))
	}
	return &WAVFilePlayer{dir: dir, realtime: realtime}, nil
}

func (p *WAVFilePlayer) Play(ctx context.Context, clip *model.Clip) (interfaces.Playback, error) {
	p.mutex.Lock()
	p.seq++
	name := filepath.Join(p.dir, time.Now().Format("20060102-150405")+"-"+strconv.Itoa(p.seq)+".wav")
	p.mutex.Unlock()

	if err := writeWAVFile(name, clip); err != nil {
		return nil, err
	}
	logging.From(ctx).Debug("speech written", "path", name, "duration", clip.Duration())

	pb := &timedPlayback{done: make(chan struct{}), stop: make(chan struct{})}
	if !p.realtime {
		pb.finish()
		return pb, nil
	}

	go func() {
		timer := time.NewTimer(clip.Duration())
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-pb.stop:
		}
		pb.finish()
	}()
	return pb, nil
}

type timedPlayback struct {
	done     chan struct{}
	stop     chan struct{}
	doneOnce sync.Once
	stopOnce sync.Once
}

func (x *timedPlayback) finish() {
	x.doneOnce.Do(func() { close(x.done) })
}

func (x *timedPlayback) Done() <-chan struct{} {
	return x.done
}

func (x *timedPlayback) Close() error {
	x.stopOnce.Do(func() { close(x.stop) })
	select {
	case <-x.done:
	default:
		x.finish()
	}
	return nil
}
