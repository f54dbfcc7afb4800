package astc

import (
	"log/slog"
	"runtime"
	"sync"
)

// gpuSlot is the process-wide advisory lock over the hardware codec. The
// codec is not safely reentrant, so at most one batch may drive it at a time;
// callers that fail to acquire it fall through to the CPU pool instead of
// blocking.
var gpuSlot = make(chan struct{}, 1)

func tryAcquireGPU() bool {
	select {
	case gpuSlot <- struct{}{}:
		return true
	default:
		return false
	}
}

func releaseGPU() { <-gpuSlot }

// maxWorkers caps the CPU pool to bound peak memory from simultaneously
// decoded source images.
const maxWorkers = 4

// DefaultWorkers returns the CPU pool size: a quarter of the hardware
// threads, at least one, capped at maxWorkers.
func DefaultWorkers() int {
	n := runtime.NumCPU() / 4
	if n < 1 {
		n = 1
	}
	if n > maxWorkers {
		n = maxWorkers
	}
	return n
}

// Job is one texture conversion: a source image destined for a container
// slot, encoded with the given block footprint.
type Job struct {
	Source string
	Target string
	BlockX int
	BlockY int
}

// Result is the outcome of one job. Data is nil when Err is set.
type Result struct {
	Job     Job
	Data    []byte
	Width   int
	Height  int
	UsedGPU bool
	Err     error
}

// Summary totals a finished batch. Every job lands in exactly one bucket.
type Summary struct {
	Applied int
	Failed  int
}

// Scheduler dispatches texture jobs to the GPU bridge when its lock can be
// taken, and otherwise to a bounded CPU pool. Jobs that fail on the GPU are
// retried exactly once on the CPU before being counted as failed.
type Scheduler struct {
	CPU     Compressor
	GPU     GPUCompressor // optional
	Workers int           // 0 selects DefaultWorkers
}

// Run processes the batch, invoking apply for each successful conversion as
// it completes. Apply errors count the job as failed. Run returns once every
// job is either applied or failed.
func (s *Scheduler) Run(jobs []Job, apply func(Result) error) Summary {
	var summary Summary
	if len(jobs) == 0 {
		return summary
	}

	pending := jobs
	if s.GPU != nil && s.GPU.Available() && tryAcquireGPU() {
		pending = s.runGPU(jobs, apply, &summary)
	}
	if len(pending) > 0 {
		s.runCPU(pending, apply, &summary)
	}
	return summary
}

// runGPU drives the whole batch sequentially under the GPU lock. Failed jobs
// are returned for the CPU pass rather than recorded, so they are never
// double-counted.
func (s *Scheduler) runGPU(jobs []Job, apply func(Result) error, summary *Summary) (deferred []Job) {
	defer releaseGPU()

	for _, job := range jobs {
		data, w, h, err := s.GPU.CompressFile(job.Source, job.BlockX, job.BlockY)
		if err != nil {
			slog.Warn("GPU compression failed, deferring to CPU",
				"source", job.Source, "error", err)
			deferred = append(deferred, job)
			continue
		}
		s.finish(Result{Job: job, Data: data, Width: w, Height: h, UsedGPU: true}, apply, summary)
	}
	return deferred
}

func (s *Scheduler) runCPU(jobs []Job, apply func(Result) error, summary *Summary) {
	workers := s.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	if workers <= 1 {
		// Sequential path, also the fallback when no pool is wanted.
		for _, job := range jobs {
			s.finish(s.compressOne(job), apply, summary)
		}
		return
	}

	jobCh := make(chan Job)
	resCh := make(chan Result)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				resCh <- s.compressOne(job)
			}
		}()
	}
	go func() {
		for _, job := range jobs {
			jobCh <- job
		}
		close(jobCh)
		wg.Wait()
		close(resCh)
	}()

	// Results are applied as they complete so at most `workers` compressed
	// payloads are buffered at once.
	for res := range resCh {
		s.finish(res, apply, summary)
	}
}

func (s *Scheduler) compressOne(job Job) Result {
	data, w, h, err := s.CPU.CompressFile(job.Source, job.BlockX, job.BlockY)
	if err != nil {
		return Result{Job: job, Err: err}
	}
	return Result{Job: job, Data: data, Width: w, Height: h}
}

// finish records one result. Each application is guarded independently so a
// single failure never blocks the rest of the batch.
func (s *Scheduler) finish(res Result, apply func(Result) error, summary *Summary) {
	if res.Err != nil {
		slog.Error("Texture compression failed", "source", res.Job.Source, "error", res.Err)
		summary.Failed++
		return
	}
	if err := apply(res); err != nil {
		slog.Error("Applying compressed texture failed",
			"target", res.Job.Target, "error", err)
		summary.Failed++
		return
	}
	summary.Applied++
}
