package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/mailrelay/internal/metrics"
	"github.com/dropDatabas3/mailrelay/internal/observability/logger"
)

// pollInterval acota cuánto tarda un worker en ver un job cuyo delay venció.
const pollInterval = 50 * time.Millisecond

type delayedJob struct {
	job        *Job
	eligibleAt time.Time
}

// MemoryQueue es el backend en memoria: mismo contrato que el de redis,
// respaldado por slices y un pool de workers. Lo usan los tests y el modo
// single-node sin redis.
type MemoryQueue struct {
	opts Options
	proc *Processor

	mu        sync.Mutex
	waiting   []delayedJob
	completed []*Job
	failed    []*Job

	active int64 // atomic

	wake   chan struct{}
	cancel context.CancelFunc
	g      *errgroup.Group
	closed bool
}

// NewMemoryQueue arranca el pool de workers y devuelve la cola lista.
func NewMemoryQueue(proc *Processor, opts Options) *MemoryQueue {
	opts.defaults()
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	q := &MemoryQueue{
		opts:   opts,
		proc:   proc,
		wake:   make(chan struct{}, 1),
		cancel: cancel,
		g:      g,
	}
	for i := 0; i < opts.Workers; i++ {
		g.Go(func() error {
			q.worker(ctx)
			return nil
		})
	}
	return q
}

func (q *MemoryQueue) Enqueue(job *Job, delay time.Duration) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.State = StateEnqueued
	job.EnqueuedAt = time.Now().UTC()
	if delay < 0 {
		delay = 0
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrClosed
	}
	q.waiting = append(q.waiting, delayedJob{job: job, eligibleAt: time.Now().Add(delay)})
	q.mu.Unlock()

	metrics.RecordEnqueued()
	q.notify()
	return job.ID, nil
}

func (q *MemoryQueue) Stats() (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Waiting:   int64(len(q.waiting)),
		Active:    atomic.LoadInt64(&q.active),
		Completed: int64(len(q.completed)),
		Failed:    int64(len(q.failed)),
	}, nil
}

func (q *MemoryQueue) PurgeOlderThan(grace time.Duration) error {
	cutoff := time.Now().UTC().Add(-grace)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = keepAfter(q.completed, cutoff)
	q.failed = keepAfter(q.failed, cutoff)
	return nil
}

// Close deja de aceptar jobs y espera a que los workers terminen el job en
// curso. Los jobs en waiting quedan sin procesar.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cancel()
	return q.g.Wait()
}

func (q *MemoryQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) worker(ctx context.Context) {
	for {
		job := q.claim()
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
			case <-time.After(pollInterval):
			}
			continue
		}
		q.run(ctx, job)
	}
}

// claim saca el primer job elegible (eligibleAt <= now) de waiting.
func (q *MemoryQueue) claim() *Job {
	now := time.Now()
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, dj := range q.waiting {
		if !dj.eligibleAt.After(now) {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return dj.job
		}
	}
	return nil
}

func (q *MemoryQueue) run(ctx context.Context, job *Job) {
	job.State = StateProcessing
	atomic.AddInt64(&q.active, 1)
	defer atomic.AddInt64(&q.active, -1)

	err := q.proc.Process(ctx, job)
	job.Attempt++
	if err == nil {
		q.finish(job, StateSent)
		return
	}
	job.LastError = err.Error()

	if !retryEligible(err, job.Attempt, q.opts.MaxAttempts) {
		logger.L().Warn("job failed terminally",
			logger.Component("dispatch"),
			logger.JobID(job.ID),
			logger.Attempt(job.Attempt),
			logger.Err(err),
		)
		q.finish(job, StateFailedTerminal)
		return
	}

	// re-insertar con eligibilidad futura = now + backoff; sin busy-wait
	wait := q.opts.backoff(job.Attempt)
	job.State = StateRetryScheduled
	q.mu.Lock()
	if !q.closed {
		q.waiting = append(q.waiting, delayedJob{job: job, eligibleAt: time.Now().Add(wait)})
	}
	q.mu.Unlock()
	logger.L().Info("job retry scheduled",
		logger.Component("dispatch"),
		logger.JobID(job.ID),
		logger.Attempt(job.Attempt),
		logger.Duration(wait),
	)
}

func (q *MemoryQueue) finish(job *Job, state JobState) {
	job.State = state
	job.FinishedAt = time.Now().UTC()
	q.mu.Lock()
	defer q.mu.Unlock()
	if state == StateSent {
		q.completed = appendBounded(q.completed, job, q.opts.KeepCompleted)
	} else {
		q.failed = appendBounded(q.failed, job, q.opts.KeepFailed)
	}
}

// appendBounded agrega al final y desaloja del frente (el más viejo).
func appendBounded(jobs []*Job, j *Job, keep int) []*Job {
	jobs = append(jobs, j)
	if len(jobs) > keep {
		jobs = jobs[len(jobs)-keep:]
	}
	return jobs
}

func keepAfter(jobs []*Job, cutoff time.Time) []*Job {
	out := jobs[:0]
	for _, j := range jobs {
		if j.FinishedAt.After(cutoff) {
			out = append(out, j)
		}
	}
	return out
}
