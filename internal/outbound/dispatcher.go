// Package outbound exécute les effets de bord secondaires (e-mails, événements,
// indexation) hors du chemin de la requête. Un échec est journalisé et compté,
// jamais remonté à l'appelant.
package outbound

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type Task func(ctx context.Context) error

type Stats struct {
	Submitted int64 `json:"submitted"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

type job struct {
	name string
	fn   Task
}

type Dispatcher struct {
	queue   chan job
	timeout time.Duration
	log     *zap.Logger
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	submitted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// New démarre workers goroutines sur une file bornée de taille size.
func New(log *zap.Logger, workers, size int, timeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 1
	}
	d := &Dispatcher{queue: make(chan job, size), timeout: timeout, log: log}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// NewInline exécute chaque tâche de façon synchrone dans Submit (tests).
func NewInline(log *zap.Logger) *Dispatcher {
	return &Dispatcher{log: log}
}

// Submit ne bloque jamais : une file pleine ou fermée abandonne la tâche.
func (d *Dispatcher) Submit(name string, fn Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	d.submitted.Add(1)
	if d.closed {
		d.drop(name, "dispatcher fermé")
		return false
	}
	if d.queue == nil {
		d.run(job{name: name, fn: fn})
		return true
	}
	select {
	case d.queue <- job{name: name, fn: fn}:
		return true
	default:
		d.drop(name, "file pleine")
		return false
	}
}

// Close arrête d'accepter des tâches et attend la fin de la file ou du contexte.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	if d.queue != nil {
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Submitted: d.submitted.Load(),
		Succeeded: d.succeeded.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	err := safeCall(ctx, j.fn)
	if err != nil {
		d.failed.Add(1)
		d.log.Warn("tâche secondaire échouée", zap.String("task", j.name), zap.Error(err))
		return
	}
	d.succeeded.Add(1)
}

func (d *Dispatcher) drop(name, reason string) {
	d.dropped.Add(1)
	d.log.Warn("tâche secondaire abandonnée", zap.String("task", name), zap.String("reason", reason))
}

var errPanic = errors.New("panic dans la tâche")

func safeCall(ctx context.Context, fn Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errPanic
		}
	}()
	return fn(ctx)
}
