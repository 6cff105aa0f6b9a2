// Package worker runs generation requests in the background.
//
// Go Pattern: A worker pool is a buffered channel (the queue) plus N
// goroutines reading from it. HTTP handlers submit a job and return 202
// straight away; clients poll the job until it reaches a terminal status.
//
// Think of it like a restaurant: the channel is the order window,
// workers are the cooks, and handlers are the waiters taking orders.
package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
	"github.com/Shimizu-Technology/tubeboard-api/internal/services/generator"
)

var (
	// ErrQueueFull is returned by Submit when no slot is free.
	ErrQueueFull = errors.New("job queue is full; try again later")
	// ErrStopped is returned by Submit once Stop has been called.
	ErrStopped = errors.New("worker pool is shutting down")
)

// maxRetainedJobs bounds how many finished jobs stay queryable.
const maxRetainedJobs = 1000

// Runner executes one generation. *generator.Service satisfies it.
type Runner interface {
	Run(ctx context.Context, projectID string, req models.CreateGenerationRequest) (models.Generation, error)
}

type job struct {
	id        string
	projectID string
	req       models.CreateGenerationRequest
}

// Pool manages a pool of worker goroutines and the status of every job
// they have seen.
type Pool struct {
	jobs    chan job
	workers int
	runner  Runner

	mu       sync.RWMutex
	statuses map[string]*models.GenerationJob
	finished []string // ids of terminal jobs, oldest first
	stopped  bool     // set under mu before jobs is closed

	// Go Pattern: sync.WaitGroup tracks running goroutines for graceful
	// shutdown, and the cancel func stops in-flight API calls.
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewPool creates a pool. Call Start to launch the workers.
func NewPool(workers, queueSize int, runner Runner) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		jobs:     make(chan job, queueSize),
		workers:  workers,
		runner:   runner,
		statuses: make(map[string]*models.GenerationJob),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	log.Printf("🚀 Starting %d generation workers", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop cancels in-flight generations and waits for the workers to exit.
// Jobs still queued are marked failed.
func (p *Pool) Stop() {
	p.once.Do(func() {
		log.Println("⏹️  Stopping workers...")
		p.cancel()
		p.mu.Lock()
		p.stopped = true
		close(p.jobs)
		p.mu.Unlock()
		p.wg.Wait()
		log.Println("✅ All workers stopped")
	})
}

// Submit queues a generation and returns its pending job.
// It never blocks: a full queue returns ErrQueueFull.
func (p *Pool) Submit(projectID string, req models.CreateGenerationRequest) (models.GenerationJob, error) {
	now := time.Now().UTC()
	status := &models.GenerationJob{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Type:      req.Type,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The send happens under mu so it cannot race Stop closing the channel.
	// Registering first means a fast worker always finds the status.
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return models.GenerationJob{}, ErrStopped
	}
	p.statuses[status.ID] = status
	select {
	case p.jobs <- job{id: status.ID, projectID: projectID, req: req}:
	default:
		delete(p.statuses, status.ID)
		p.mu.Unlock()
		return models.GenerationJob{}, ErrQueueFull
	}
	p.mu.Unlock()

	log.Printf("📥 Job queued: %s (%s for project %s)", status.ID, req.Type, projectID)
	return p.snapshot(status.ID), nil
}

// Job returns the current status of a job.
func (p *Pool) Job(id string) (models.GenerationJob, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.statuses[id]
	if !ok {
		return models.GenerationJob{}, false
	}
	return *s, true
}

// QueueSize returns the current number of jobs waiting in the queue.
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}

// WorkerCount returns the number of workers.
func (p *Pool) WorkerCount() int {
	return p.workers
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	log.Printf("👷 Worker %d started", id)

	for j := range p.jobs {
		if p.ctx.Err() != nil {
			p.finish(j.id, func(s *models.GenerationJob) {
				s.Status = models.StatusFailed
				s.Error = "server shutting down"
			})
			continue
		}

		p.update(j.id, func(s *models.GenerationJob) { s.Status = models.StatusProcessing })
		log.Printf("👷 Worker %d processing job: %s", id, j.id)

		gen, err := p.runner.Run(p.ctx, j.projectID, j.req)
		if err != nil {
			log.Printf("❌ Worker %d: job %s failed: %v", id, j.id, err)
			p.finish(j.id, func(s *models.GenerationJob) {
				s.Status = models.StatusFailed
				s.Error = generator.FailureMessage
				s.Detail = err.Error()
			})
			continue
		}

		log.Printf("✅ Worker %d: job %s completed", id, j.id)
		p.finish(j.id, func(s *models.GenerationJob) {
			s.Status = models.StatusCompleted
			s.GenerationID = gen.ID
		})
	}

	log.Printf("👷 Worker %d stopped", id)
}

func (p *Pool) update(id string, apply func(*models.GenerationJob)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.statuses[id]; ok {
		apply(s)
		s.UpdatedAt = time.Now().UTC()
	}
}

// finish applies a terminal update and evicts the oldest finished jobs
// beyond maxRetainedJobs.
func (p *Pool) finish(id string, apply func(*models.GenerationJob)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.statuses[id]
	if !ok {
		return
	}
	apply(s)
	s.UpdatedAt = time.Now().UTC()

	p.finished = append(p.finished, id)
	for len(p.finished) > maxRetainedJobs {
		delete(p.statuses, p.finished[0])
		p.finished = p.finished[1:]
	}
}

func (p *Pool) snapshot(id string) models.GenerationJob {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if s, ok := p.statuses[id]; ok {
		return *s
	}
	return models.GenerationJob{ID: id}
}
