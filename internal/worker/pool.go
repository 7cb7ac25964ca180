package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"notify-gateway/internal/config"
	"notify-gateway/internal/observability"
	"notify-gateway/internal/queue"
)

// Pool runs a fixed set of workers against one queue. Jobs flow from a
// fetch loop through a buffered channel; a second loop promotes delayed
// jobs whose retry time has arrived.
type Pool struct {
	queueName string
	size      int
	runner    *Runner
	broker    queue.Broker
	metrics   *observability.Metrics
	logger    *zap.Logger

	fetchInterval   time.Duration
	fetchBatch      int
	promoteInterval time.Duration

	jobChan chan *queue.Job
	wg      sync.WaitGroup
	stop    chan struct{}

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewPool(queueName string, size int, runner *Runner, broker queue.Broker, metrics *observability.Metrics, cfg *config.Config, logger *zap.Logger) *Pool {
	return &Pool{
		queueName:       queueName,
		size:            size,
		runner:          runner,
		broker:          broker,
		metrics:         metrics,
		logger:          logger.With(zap.String("queue", queueName)),
		fetchInterval:   cfg.QueueFetchInterval,
		fetchBatch:      cfg.QueueFetchBatch,
		promoteInterval: cfg.DelayedPromoteInterval,
		jobChan:         make(chan *queue.Job, size*2),
		stop:            make(chan struct{}),
		inFlight:        make(map[string]struct{}),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.wg.Add(1)
	go p.fetchLoop(ctx)

	p.wg.Add(1)
	go p.promoteLoop(ctx)
}

// Stop drains the pool, waiting up to timeout for in-flight jobs.
func (p *Pool) Stop(timeout time.Duration) {
	p.logger.Info("stopping worker pool")
	close(p.stop)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped")
	case <-time.After(timeout):
		p.logger.Warn("worker pool shutdown timed out", zap.Duration("timeout", timeout))
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case job := <-p.jobChan:
			p.runner.Process(ctx, p.queueName, job)
			p.markDone(job.ID)
		}
	}
}

func (p *Pool) fetchLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.fetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetch(ctx)
		}
	}
}

func (p *Pool) fetch(ctx context.Context) {
	jobs, err := p.broker.Dequeue(ctx, p.queueName, p.fetchBatch)
	if err != nil {
		p.logger.Error("failed to fetch jobs", zap.Error(err))
		return
	}

	for _, job := range jobs {
		// dequeue is non-destructive, so unacked jobs come back every
		// tick; skip the ones already handed to a worker
		if !p.markInFlight(job.ID) {
			continue
		}
		select {
		case p.jobChan <- job:
		case <-p.stop:
			p.markDone(job.ID)
			return
		case <-ctx.Done():
			p.markDone(job.ID)
			return
		}
	}
}

func (p *Pool) promoteLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.promoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.broker.PromoteDelayed(ctx, p.queueName, time.Now())
			if err != nil {
				p.logger.Error("failed to promote delayed jobs", zap.Error(err))
				continue
			}
			if n > 0 {
				p.logger.Debug("promoted delayed jobs", zap.Int("count", n))
			}
			p.updateDepth(ctx)
		}
	}
}

func (p *Pool) updateDepth(ctx context.Context) {
	stats, err := p.broker.Stats(ctx, p.queueName)
	if err != nil {
		p.logger.Warn("failed to read queue stats", zap.Error(err))
		return
	}
	p.metrics.QueueDepth.WithLabelValues(p.queueName).Set(float64(stats.Waiting))
}

func (p *Pool) markInFlight(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inFlight[id]; ok {
		return false
	}
	p.inFlight[id] = struct{}{}
	return true
}

func (p *Pool) markDone(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, id)
}
