// Package chain runs dependent AI calls whose results may be superseded by a
// newer request before they arrive.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/m-mizutani/agriai/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrSkip is returned by a branch that decided not to run. The branch is
	// recorded as skipped rather than failed.
	ErrSkip = errors.New("branch skipped")

	// ErrStale reports that the request was superseded and its result was discarded
	ErrStale = errors.New("request superseded")
)

// Token identifies one request
type Token uint64

// Tracker hands out request tokens. Only the latest token is current.
type Tracker struct {
	current atomic.Uint64
}

// Begin starts a new request and supersedes every previous one
func (x *Tracker) Begin() Token {
	return Token(x.current.Add(1))
}

// Invalidate supersedes the current request without starting a new one
func (x *Tracker) Invalidate() {
	x.current.Add(1)
}

// IsCurrent reports whether tok is the latest request
func (x *Tracker) IsCurrent(tok Token) bool {
	return Token(x.current.Load()) == tok
}

// BranchStatus is the observable state of one branch
type BranchStatus struct {
	Loading bool
	Err     error
	Skipped bool
}

// Run is the set of branches started for one request
type Run struct {
	tracker *Tracker
	token   Token
	ctx     context.Context

	wg       sync.WaitGroup
	mutex    sync.Mutex
	statuses map[string]*BranchStatus
	order    []string
}

// NewRun creates a run bound to token. Branches inherit values of ctx but not its cancellation.
func NewRun(ctx context.Context, tracker *Tracker, token Token) *Run {
	return &Run{
		tracker:  tracker,
		token:    token,
		ctx:      context.WithoutCancel(ctx),
		statuses: make(map[string]*BranchStatus),
	}
}

// Token returns the request token of the run
func (x *Run) Token() Token {
	return x.token
}

// IsCurrent reports whether the run has not been superseded
func (x *Run) IsCurrent() bool {
	return x.tracker.IsCurrent(x.token)
}

// Go starts branch name. A failure is recorded on that branch only.
func (x *Run) Go(name string, fn func(ctx context.Context) error) {
	x.mutex.Lock()
	if _, ok := x.statuses[name]; !ok {
		x.order = append(x.order, name)
	}
	x.statuses[name] = &BranchStatus{Loading: true}
	x.mutex.Unlock()

	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		ctx := logging.With(x.ctx, logging.From(x.ctx).With("branch", name))
		err := x.call(ctx, fn)

		x.mutex.Lock()
		defer x.mutex.Unlock()
		status := x.statuses[name]
		status.Loading = false
		switch {
		case err == nil:
		case errors.Is(err, ErrSkip), errors.Is(err, ErrStale):
			status.Skipped = true
			logging.From(ctx).Debug("branch skipped", "reason", err.Error())
		default:
			status.Err = err
			logging.From(ctx).Warn("branch failed", logging.ErrAttr(err))
		}
	}()
}

// Skip records branch name as skipped without running it
func (x *Run) Skip(name string) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	if _, ok := x.statuses[name]; !ok {
		x.order = append(x.order, name)
	}
	x.statuses[name] = &BranchStatus{Skipped: true}
}

func (x *Run) call(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("branch panicked", goerr.V("panic", fmt.Sprint(r)))
		}
	}()
	return fn(ctx)
}

// Wait blocks until every started branch has settled
func (x *Run) Wait() {
	x.wg.Wait()
}

// Status returns the state of branch name
func (x *Run) Status(name string) (BranchStatus, bool) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	status, ok := x.statuses[name]
	if !ok {
		return BranchStatus{}, false
	}
	return *status, true
}

// Branches returns branch names in start order
func (x *Run) Branches() []string {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return append([]string(nil), x.order...)
}
