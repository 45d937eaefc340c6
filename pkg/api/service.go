package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/publication-classification/pkg/network"
	"github.com/gilchrisn/publication-classification/pkg/pipeline"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrInvalidJob  = errors.New("invalid classification request")
)

// JobConfig controls how classification jobs are run
type JobConfig struct {
	MaxWorkers      int
	JobTimeout      time.Duration
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// DefaultJobConfig returns the job settings used by the server by default
func DefaultJobConfig() JobConfig {
	return JobConfig{
		MaxWorkers:      4,
		JobTimeout:      time.Hour,
		ResultTTL:       time.Hour,
		CleanupInterval: 5 * time.Minute,
	}
}

// JobService runs classification jobs in the background
type JobService struct {
	jobs    map[string]*Job
	cancels map[string]context.CancelFunc
	workers chan struct{}
	mutex   sync.RWMutex
	config  JobConfig
	metrics *Metrics

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// NewJobService creates a job service and starts its cleanup loop. metrics
// may be nil.
func NewJobService(config JobConfig, metrics *Metrics) *JobService {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 1
	}
	ctx, stop := context.WithCancel(context.Background())
	s := &JobService{
		jobs:    make(map[string]*Job),
		cancels: make(map[string]context.CancelFunc),
		workers: make(chan struct{}, config.MaxWorkers),
		config:  config,
		metrics: metrics,
		ctx:     ctx,
		stop:    stop,
	}

	if config.CleanupInterval > 0 && config.ResultTTL > 0 {
		s.wg.Add(1)
		go s.cleanupLoop()
	}
	return s
}

// Close cancels all running jobs and waits for them to finish
func (s *JobService) Close() {
	s.stop()
	s.wg.Wait()
}

// Submit validates a request and queues a classification job
func (s *JobService) Submit(req ClassificationRequest) (*Job, error) {
	cfg := pipeline.DefaultConfig()
	if len(bytes.TrimSpace(req.Config)) > 0 && !bytes.Equal(bytes.TrimSpace(req.Config), []byte("null")) {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return nil, fmt.Errorf("%w: decoding config: %v", ErrInvalidJob, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	net, err := buildNetwork(req.Publications, req.Links)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	now := time.Now()
	job := &Job{
		ID:        uuid.New().String(),
		Status:    JobStatusQueued,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
	var ctx context.Context
	var cancel context.CancelFunc
	if s.config.JobTimeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, s.config.JobTimeout)
	} else {
		ctx, cancel = context.WithCancel(s.ctx)
	}

	s.mutex.Lock()
	s.jobs[job.ID] = job
	s.cancels[job.ID] = cancel
	snapshot := *job
	s.mutex.Unlock()

	log.Info().
		Str("job_id", job.ID).
		Int("publications", net.NNodes()).
		Int("citation_links", net.NEdges()).
		Int("levels", len(cfg.Levels)).
		Msg("Job submitted")

	s.wg.Add(1)
	go s.processJob(ctx, job.ID, cfg, net)

	return &snapshot, nil
}

// buildNetwork creates the citation network of a request. Publication
// numbers must cover 0..n-1 exactly once.
func buildNetwork(pubs []Publication, links []network.Link) (*network.Network, error) {
	weights := make([]float64, len(pubs))
	seen := make([]bool, len(pubs))
	for _, pub := range pubs {
		if pub.PubNo < 0 || pub.PubNo >= len(pubs) {
			return nil, fmt.Errorf("publication number %d out of range [0, %d)", pub.PubNo, len(pubs))
		}
		if seen[pub.PubNo] {
			return nil, fmt.Errorf("duplicate publication number %d", pub.PubNo)
		}
		seen[pub.PubNo] = true
		if pub.Core {
			weights[pub.PubNo] = 1
		}
	}
	return network.New(weights, links)
}

// Get returns a snapshot of a job
func (s *JobService) Get(jobID string) (*Job, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	snapshot := *job
	return &snapshot, nil
}

// List returns summaries of all jobs. Results keep their per-level
// summaries but not the publication assignments.
func (s *JobService) List() []*Job {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		snapshot := *job
		if job.Result != nil {
			summary := *job.Result
			summary.Pubs = nil
			summary.Clusters = nil
			snapshot.Result = &summary
		}
		jobs = append(jobs, &snapshot)
	}
	return jobs
}

// Cancel stops a queued or running job
func (s *JobService) Cancel(jobID string) error {
	s.mutex.Lock()
	job, exists := s.jobs[jobID]
	if !exists {
		s.mutex.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	cancel := s.cancels[jobID]
	finished := job.Status.Finished()
	s.mutex.Unlock()

	if cancel != nil && !finished {
		cancel()
		log.Info().Str("job_id", jobID).Msg("Job cancellation requested")
	}
	return nil
}

// processJob runs a job once a worker slot is free
func (s *JobService) processJob(ctx context.Context, jobID string, cfg pipeline.Config, net *network.Network) {
	defer s.wg.Done()

	select {
	case s.workers <- struct{}{}:
		defer func() { <-s.workers }()
	case <-ctx.Done():
		s.finishJob(jobID, nil, ctx.Err(), 0)
		return
	}

	startTime := time.Now()
	s.updateJob(jobID, func(job *Job) {
		job.Status = JobStatusRunning
		job.StartedAt = &startTime
	})
	if s.metrics != nil {
		s.metrics.JobsRunning.Inc()
	}

	log.Info().Str("job_id", jobID).Msg("Job processing started")

	logger := log.With().Str("job_id", jobID).Logger()
	result, err := pipeline.Run(ctx, &cfg, pipeline.NetworkSource{Network: net}, nil, logger)
	if s.metrics != nil {
		s.metrics.JobsRunning.Dec()
	}
	s.finishJob(jobID, result, err, time.Since(startTime))
}

func (s *JobService) finishJob(jobID string, result *pipeline.Result, err error, duration time.Duration) {
	status := JobStatusCompleted
	switch {
	case errors.Is(err, context.Canceled):
		status = JobStatusCancelled
	case err != nil:
		status = JobStatusFailed
	}

	if s.metrics != nil {
		s.metrics.JobsTotal.WithLabelValues(string(status)).Inc()
		if duration > 0 {
			s.metrics.JobDurations.Observe(duration.Seconds())
		}
		if result != nil {
			for _, level := range result.Levels {
				s.metrics.LevelClusters.WithLabelValues(level.Name).Set(float64(level.NClusters))
			}
		}
	}

	s.updateJob(jobID, func(job *Job) {
		now := time.Now()
		job.Status = status
		job.CompletedAt = &now
		if err != nil {
			job.Error = err.Error()
		}
		job.Result = result
	})

	s.mutex.Lock()
	if cancel := s.cancels[jobID]; cancel != nil {
		cancel()
		delete(s.cancels, jobID)
	}
	s.mutex.Unlock()

	event := log.Info()
	if err != nil {
		event = log.Error().Err(err)
	}
	event.Str("job_id", jobID).
		Str("status", string(status)).
		Dur("duration", duration).
		Msg("Job finished")
}

func (s *JobService) updateJob(jobID string, update func(job *Job)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return
	}
	update(job)
	job.UpdatedAt = time.Now()
}

// cleanupLoop periodically removes finished jobs older than the result TTL
func (s *JobService) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(time.Now().Add(-s.config.ResultTTL))
		}
	}
}

func (s *JobService) cleanup(cutoff time.Time) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cleaned := 0
	for jobID, job := range s.jobs {
		if job.Status.Finished() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, jobID)
			cleaned++
		}
	}

	if cleaned > 0 {
		log.Info().
			Int("cleaned_jobs", cleaned).
			Msg("Job cleanup completed")
	}
	return cleaned
}
