package adapter_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/m-mizutani/agriai/pkg/adapter"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestWriteWAV(t *testing.T) {
	clip := model.NewClip([]int{0, 1, -1, 32767}, model.SpeechSampleRate)

	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	gt.NoError(t, err)
	gt.NoError(t, adapter.WriteWAV(f, clip))
	gt.NoError(t, f.Close())

	r, err := os.Open(path)
	gt.NoError(t, err)
	defer r.Close()

	dec := wav.NewDecoder(r)
	gt.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	gt.NoError(t, err)
	gt.Equal(t, dec.SampleRate, uint32(24000))
	gt.Equal(t, dec.BitDepth, uint16(16))
	gt.Equal(t, dec.NumChans, uint16(1))
	gt.Equal(t, buf.Data, []int{0, 1, -1, 32767})
}

func TestWAVFilePlayer(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	t.Run("non realtime playback ends immediately", func(t *testing.T) {
		p, err := adapter.NewWAVFilePlayer(dir, false)
		gt.NoError(t, err)

		pb, err := p.Play(ctx, model.NewClip(make([]int, 240), 24000))
		gt.NoError(t, err)

		select {
		case <-pb.Done():
		case <-time.After(time.Second):
			t.Fatal("playback did not end")
		}
		gt.NoError(t, pb.Close())

		files, err := filepath.Glob(filepath.Join(dir, "*.wav"))
		gt.NoError(t, err)
		gt.A(t, files).Longer(0)
	})

	t.Run("realtime playback stops on close", func(t *testing.T) {
		p, err := adapter.NewWAVFilePlayer(dir, true)
		gt.NoError(t, err)

		// one minute of silence
		pb, err := p.Play(ctx, model.NewClip(make([]int, 24000*60), 24000))
		gt.NoError(t, err)

		select {
		case <-pb.Done():
			t.Fatal("playback ended too early")
		default:
		}

		gt.NoError(t, pb.Close())
		gt.NoError(t, pb.Close())
		<-pb.Done()
	})
}

func TestExecPlayer(t *testing.T) {
	if _, err := os.Stat("/bin/sleep"); err != nil {
		t.Skip("sleep command is not available")
	}
	ctx := context.Background()
	clip := model.NewClip(make([]int, 10), 24000)

	t.Run("natural end releases the file", func(t *testing.T) {
		dir := t.TempDir()
		p, err := adapter.NewExecPlayer(adapter.WithPlayerCommand("/bin/sh", "-c", "test -f \"$0\""), adapter.WithPlayerTempDir(dir))
		gt.NoError(t, err)

		pb, err := p.Play(ctx, clip)
		gt.NoError(t, err)
		select {
		case <-pb.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("playback did not end")
		}

		files, err := filepath.Glob(filepath.Join(dir, "*.wav"))
		gt.NoError(t, err)
		gt.A(t, files).Length(0)
	})

	t.Run("close kills the player", func(t *testing.T) {
		dir := t.TempDir()
		p, err := adapter.NewExecPlayer(adapter.WithPlayerCommand("/bin/sh", "-c", "sleep 30"), adapter.WithPlayerTempDir(dir))
		gt.NoError(t, err)

		pb, err := p.Play(ctx, clip)
		gt.NoError(t, err)
		gt.NoError(t, pb.Close())
		<-pb.Done()

		files, err := filepath.Glob(filepath.Join(dir, "*.wav"))
		gt.NoError(t, err)
		gt.A(t, files).Length(0)
	})
}
