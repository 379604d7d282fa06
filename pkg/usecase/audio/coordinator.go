package audio

import (
	"context"
	"sync"

	"github.com/m-mizutani/agriai/pkg/interfaces"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/utils/logging"
)

type state int

const (
	stateIdle state = iota
	stateLoading
	statePlaying
)

// Coordinator reads text aloud with at most one clip at a time. Play toggles:
// while a clip plays, Play stops it.
type Coordinator struct {
	advisor    interfaces.Advisor
	player     interfaces.Player
	sampleRate int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mutex    sync.Mutex
	state    state
	seq      uint64
	playback interfaces.Playback
	idle     chan struct{}
	err      error
	closed   bool
}

// Option is a functional option for Coordinator
type Option func(*Coordinator)

// WithSampleRate sets the sample rate of synthesized audio
func WithSampleRate(rate int) Option {
	return func(c *Coordinator) {
		c.sampleRate = rate
	}
}

func New(advisor interfaces.Advisor, player interfaces.Player, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		advisor:    advisor,
		player:     player,
		sampleRate: model.SpeechSampleRate,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Play starts reading text aloud and reports whether it did. It is ignored
// while a clip is loading, and stops the current clip while one is playing.
func (x *Coordinator) Play(ctx context.Context, text string) bool {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	switch {
	case x.closed, x.state == stateLoading:
		return false
	case x.state == statePlaying:
		x.stop()
		return false
	}

	x.seq++
	x.state = stateLoading
	x.err = nil
	x.idle = make(chan struct{})

	loadCtx := logging.With(x.ctx, logging.From(ctx))
	x.wg.Add(1)
	go x.run(loadCtx, x.seq, text)
	return true
}

func (x *Coordinator) run(ctx context.Context, seq uint64, text string) {
	defer x.wg.Done()

	pb, err := x.load(ctx, text)

	x.mutex.Lock()
	if seq != x.seq || x.closed {
		x.mutex.Unlock()
		if pb != nil {
			x.release(ctx, pb)
		}
		return
	}
	if err != nil {
		logging.From(ctx).Warn("failed to read text aloud", logging.ErrAttr(err))
		x.err = err
		x.setIdle()
		x.mutex.Unlock()
		return
	}
	x.state = statePlaying
	x.playback = pb
	x.mutex.Unlock()

	<-pb.Done()

	x.mutex.Lock()
	if x.playback == pb {
		x.playback = nil
		x.setIdle()
	}
	x.mutex.Unlock()
	x.release(ctx, pb)
}

func (x *Coordinator) load(ctx context.Context, text string) (interfaces.Playback, error) {
	data, err := x.advisor.SynthesizeSpeech(ctx, text)
	if err != nil {
		return nil, err
	}
	clip, err := DecodePCM16(data, x.sampleRate)
	if err != nil {
		return nil, err
	}
	return x.player.Play(ctx, clip)
}

func (x *Coordinator) release(ctx context.Context, pb interfaces.Playback) {
	if err := pb.Close(); err != nil {
		logging.From(ctx).Warn("failed to release playback", logging.ErrAttr(err))
	}
}

// setIdle must be called with mutex held
func (x *Coordinator) setIdle() {
	x.state = stateIdle
	if x.idle != nil {
		close(x.idle)
		x.idle = nil
	}
}

// stop must be called with mutex held. A clip still loading is discarded when it arrives.
func (x *Coordinator) stop() {
	x.seq++
	if x.playback != nil {
		pb := x.playback
		x.playback = nil
		// Close waits for the player to exit, so do not hold the lock on it
		x.wg.Add(1)
		go func() {
			defer x.wg.Done()
			x.release(x.ctx, pb)
		}()
	}
	x.setIdle()
}

// Stop stops the current clip or discards the one being loaded
func (x *Coordinator) Stop() {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.stop()
}

// IsLoading reports whether speech is being synthesized
func (x *Coordinator) IsLoading() bool {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.state == stateLoading
}

// IsPlaying reports whether a clip is playing
func (x *Coordinator) IsPlaying() bool {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.state == statePlaying
}

// Err returns the failure of the last Play, if any
func (x *Coordinator) Err() error {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.err
}

// Wait blocks until nothing is loading or playing
func (x *Coordinator) Wait(ctx context.Context) error {
	x.mutex.Lock()
	idle := x.idle
	x.mutex.Unlock()
	if idle == nil {
		return nil
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops playback, cancels synthesis and releases every acquired playback
func (x *Coordinator) Close() {
	x.mutex.Lock()
	if x.closed {
		x.mutex.Unlock()
		return
	}
	x.closed = true
	pb := x.playback
	x.playback = nil
	x.seq++
	x.setIdle()
	x.mutex.Unlock()

	x.cancel()
	if pb != nil {
		x.release(x.ctx, pb)
	}
	x.wg.Wait()
}
