package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	rdb "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/mailrelay/internal/domain"
	"github.com/dropDatabas3/mailrelay/internal/metrics"
	"github.com/dropDatabas3/mailrelay/internal/observability/logger"
)

// Layout en redis (prefijo "email:"):
//
//	email:waiting   ZSET  score = eligibleAt (unix ms), member = job JSON
//	email:active    STRING contador de jobs en procesamiento
//	email:completed ZSET  score = finishedAt, retenido a KeepCompleted
//	email:failed    ZSET  score = finishedAt, retenido a KeepFailed
//
// El claim es ZREM tras leer: con N workers compitiendo solo gana el que
// remueve (ZREM devuelve 1), sin Lua ni locks.
const (
	keyWaiting   = "email:waiting"
	keyActive    = "email:active"
	keyCompleted = "email:completed"
	keyFailed    = "email:failed"
)

// RedisQueue es el backend durable de la cola sobre redis.
type RedisQueue struct {
	client *rdb.Client
	opts   Options
	proc   *Processor

	cancel context.CancelFunc
	g      *errgroup.Group
}

// NewRedisQueue conecta al backend y arranca el pool de workers.
// Falla si redis no responde al ping inicial: una cola que no puede
// persistir jobs no debe aceptar tráfico.
func NewRedisQueue(ctx context.Context, addr, password string, db int, proc *Processor, opts Options) (*RedisQueue, error) {
	opts.defaults()
	client := rdb.NewClient(&rdb.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}

	wctx, cancel := context.WithCancel(context.Background())
	g, wctx := errgroup.WithContext(wctx)

	q := &RedisQueue{client: client, opts: opts, proc: proc, cancel: cancel, g: g}
	for i := 0; i < opts.Workers; i++ {
		g.Go(func() error {
			q.worker(wctx)
			return nil
		})
	}
	return q, nil
}

func (q *RedisQueue) Enqueue(job *Job, delay time.Duration) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.State = StateEnqueued
	job.EnqueuedAt = time.Now().UTC()
	if delay < 0 {
		delay = 0
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	score := float64(time.Now().Add(delay).UnixMilli())
	ctx := context.Background()
	if err := q.client.ZAdd(ctx, keyWaiting, rdb.Z{Score: score, Member: payload}).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}
	metrics.RecordEnqueued()
	return job.ID, nil
}

func (q *RedisQueue) Stats() (Stats, error) {
	ctx := context.Background()
	pipe := q.client.TxPipeline()
	waiting := pipe.ZCard(ctx, keyWaiting)
	active := pipe.Get(ctx, keyActive)
	completed := pipe.ZCard(ctx, keyCompleted)
	failed := pipe.ZCard(ctx, keyFailed)
	if _, err := pipe.Exec(ctx); err != nil && err != rdb.Nil {
		return Stats{}, fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}

	act, _ := strconv.ParseInt(active.Val(), 10, 64)
	return Stats{
		Waiting:   waiting.Val(),
		Active:    act,
		Completed: completed.Val(),
		Failed:    failed.Val(),
	}, nil
}

func (q *RedisQueue) PurgeOlderThan(grace time.Duration) error {
	ctx := context.Background()
	cutoff := strconv.FormatInt(time.Now().Add(-grace).UnixMilli(), 10)
	pipe := q.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, keyCompleted, "-inf", cutoff)
	pipe.ZRemRangeByScore(ctx, keyFailed, "-inf", cutoff)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}
	return nil
}

func (q *RedisQueue) Close() error {
	q.cancel()
	err := q.g.Wait()
	_ = q.client.Close()
	return err
}

func (q *RedisQueue) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		payload, ok := q.claim(ctx)
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			continue
		}
		q.run(ctx, payload)
	}
}

// claim toma el job elegible más viejo. Lectura + ZREM: si otro worker lo
// removió primero, ZREM devuelve 0 y se reintenta en el próximo ciclo.
func (q *RedisQueue) claim(ctx context.Context) (string, bool) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	res, err := q.client.ZRangeByScore(ctx, keyWaiting, &rdb.ZRangeBy{
		Min: "-inf", Max: now, Count: 1,
	}).Result()
	if err != nil || len(res) == 0 {
		return "", false
	}
	removed, err := q.client.ZRem(ctx, keyWaiting, res[0]).Result()
	if err != nil || removed == 0 {
		return "", false
	}
	return res[0], true
}

func (q *RedisQueue) run(ctx context.Context, payload string) {
	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		logger.L().Error("malformed job payload dropped",
			logger.Component("dispatch"), logger.Err(err))
		return
	}

	job.State = StateProcessing
	q.client.Incr(ctx, keyActive)
	defer q.client.Decr(ctx, keyActive)

	err := q.proc.Process(ctx, &job)
	job.Attempt++
	if err == nil {
		q.finish(ctx, &job, StateSent, keyCompleted, q.opts.KeepCompleted)
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
		q.finish(ctx, &job, StateFailedTerminal, keyFailed, q.opts.KeepFailed)
		return
	}

	wait := q.opts.backoff(job.Attempt)
	job.State = StateRetryScheduled
	payloadOut, merr := json.Marshal(&job)
	if merr != nil {
		return
	}
	score := float64(time.Now().Add(wait).UnixMilli())
	if err := q.client.ZAdd(ctx, keyWaiting, rdb.Z{Score: score, Member: payloadOut}).Err(); err != nil {
		logger.L().Error("retry reschedule failed",
			logger.Component("dispatch"), logger.JobID(job.ID), logger.Err(err))
	}
}

func (q *RedisQueue) finish(ctx context.Context, job *Job, state JobState, key string, keep int) {
	job.State = state
	job.FinishedAt = time.Now().UTC()
	payload, err := json.Marshal(job)
	if err != nil {
		return
	}
	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, key, rdb.Z{Score: float64(job.FinishedAt.UnixMilli()), Member: payload})
	// retención: desalojar los más viejos por rank
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-(keep + 1)))
	if _, err := pipe.Exec(ctx); err != nil {
		logger.L().Error("job finish record failed",
			logger.Component("dispatch"), logger.JobID(job.ID), logger.Err(err))
	}
}
