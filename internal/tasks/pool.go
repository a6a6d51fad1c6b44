// Package tasks runs the bot's background work (enrichment, bulk clears)
// outside the webhook request cycle. A bounded worker pool replaces
// fire-and-forget goroutines: the queue has a hard capacity, and each task
// carries a (chat, kind) identity so the same job cannot pile up for one chat
// while an earlier run is still queued or executing.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
)

// Kind names a background task type for identity and logging.
type Kind string

const (
	// KindEnrich is the ad-metrics enrichment run.
	KindEnrich Kind = "enrich"
	// KindClear is the bulk phrase deletion.
	KindClear Kind = "clear"
)

var (
	// ErrAlreadyRunning means a task with the same (chat, kind) identity is
	// queued or executing.
	ErrAlreadyRunning = errors.New("task already running for this chat")

	// ErrQueueFull means the pending queue is at capacity.
	ErrQueueFull = errors.New("task queue is full")

	// ErrStopped means the pool is shutting down and accepts no more work.
	ErrStopped = errors.New("task pool stopped")
)

type taskKey struct {
	chatID int64
	kind   Kind
}

// Task is one unit of background work.
type Task struct {
	ChatID int64
	Kind   Kind
	Run    func(ctx context.Context) error
}

// Pool executes tasks on a fixed set of workers with a bounded queue.
type Pool struct {
	log    zerolog.Logger
	queue  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active map[taskKey]struct{}
	closed bool
}

// NewPool starts workers goroutines consuming a queue of queueSize slots.
func NewPool(workers, queueSize int, log zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		log:    log,
		queue:  make(chan Task, queueSize),
		ctx:    ctx,
		cancel: cancel,
		active: make(map[taskKey]struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues a task. It fails fast with ErrAlreadyRunning when the same
// (chat, kind) identity is already pending or executing, and with
// ErrQueueFull when the queue has no free slot; the caller is expected to
// tell the user rather than block the webhook.
func (p *Pool) Submit(t Task) error {
	if t.Run == nil {
		return errors.New("task has no body")
	}
	key := taskKey{chatID: t.ChatID, kind: t.Kind}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrStopped
	}
	if _, busy := p.active[key]; busy {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.active[key] = struct{}{}
	p.mu.Unlock()

	select {
	case p.queue <- t:
		return nil
	default:
		p.release(key)
		return ErrQueueFull
	}
}

// Shutdown stops accepting work, waits for in-flight tasks to finish, and
// cancels their context when ctx expires first.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	close(p.queue)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.queue {
		p.run(t)
	}
}

func (p *Pool) run(t Task) {
	key := taskKey{chatID: t.ChatID, kind: t.Kind}
	defer p.release(key)
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Int64("chat_id", t.ChatID).
				Str("kind", string(t.Kind)).
				Msg("task panicked")
		}
	}()

	if err := t.Run(p.ctx); err != nil {
		p.log.Error().Err(err).
			Int64("chat_id", t.ChatID).
			Str("kind", string(t.Kind)).
			Msg("task failed")
		return
	}
	p.log.Info().
		Int64("chat_id", t.ChatID).
		Str("kind", string(t.Kind)).
		Msg("task done")
}

func (p *Pool) release(key taskKey) {
	p.mu.Lock()
	delete(p.active, key)
	p.mu.Unlock()
}

// String implements fmt.Stringer for log-friendly task identities.
func (t Task) String() string {
	return fmt.Sprintf("%s/%d", t.Kind, t.ChatID)
}
