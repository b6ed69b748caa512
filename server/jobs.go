package server

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/fablecast/fablecast/internal/studio"
)

// Job states.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// queueDepth bounds how many jobs can wait behind the render worker.
const queueDepth = 8

// ErrQueueFull is returned when the job queue cannot take more work.
var ErrQueueFull = errors.New("job queue is full")

// Job is one production run tracked by the server.
type Job struct {
	ID        string
	Title     string
	CreatedAt time.Time

	mu      sync.Mutex
	status  string
	err     string
	outputs []studio.Output
	history []studio.Event
	subs    map[chan studio.Event]struct{}
}

// Status returns the job state and, for failed jobs, the error text.
func (j *Job) Status() (status, errText string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status, j.err
}

// Outputs returns the finished videos. Empty until the job is done.
func (j *Job) Outputs() []studio.Output {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]studio.Output(nil), j.outputs...)
}

// Subscribe returns a channel that replays the job's event history and
// then follows live progress. Cancel releases the subscription.
func (j *Job) Subscribe() (ch chan studio.Event, cancel func()) {
	j.mu.Lock()
	defer j.mu.Unlock()

	ch = make(chan studio.Event, len(j.history)+64)
	for _, ev := range j.history {
		ch <- ev
	}
	// A finished job has nothing more to say; close after the replay so
	// late subscribers still terminate.
	if j.status == StatusDone || j.status == StatusFailed {
		close(ch)
		return ch, func() {}
	}
	if j.subs == nil {
		j.subs = make(map[chan studio.Event]struct{})
	}
	j.subs[ch] = struct{}{}

	return ch, func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if _, ok := j.subs[ch]; ok {
			delete(j.subs, ch)
			close(ch)
		}
	}
}

// publish appends to history and fans out to subscribers without
// blocking; a stalled browser just misses intermediate updates.
func (j *Job) publish(ev studio.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.history = append(j.history, ev)
	for ch := range j.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// finish records the terminal state and closes all subscriptions.
func (j *Job) finish(status string, outputs []studio.Output, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.outputs = outputs
	if err != nil {
		j.err = err.Error()
	}
	for ch := range j.subs {
		close(ch)
	}
	j.subs = nil
}

func (j *Job) setStatus(status string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
}

// ProducerFactory builds a pipeline for one job. The cleanup function
// releases engine resources after the job and may be nil.
type ProducerFactory func(ttsEngine, voice string) (producer *studio.Producer, cleanup func(), err error)

// Jobs runs production requests one at a time. Rendering saturates the
// machine on its own, so a single worker is the right bound.
type Jobs struct {
	factory ProducerFactory
	store   *Store

	mu    sync.Mutex
	jobs  map[string]*Job
	queue chan queued
}

type queued struct {
	job       *Job
	req       studio.Request
	ttsEngine string
	voice     string
}

// NewJobs builds a job manager over the producer factory. The store
// may be nil to skip history records.
func NewJobs(factory ProducerFactory, store *Store) *Jobs {
	return &Jobs{
		factory: factory,
		store:   store,
		jobs:    make(map[string]*Job),
		queue:   make(chan queued, queueDepth),
	}
}

// Run consumes the queue until the context ends.
func (m *Jobs) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-m.queue:
			m.run(ctx, q)
		}
	}
}

// Submit enqueues a production request and returns its job.
func (m *Jobs) Submit(title string, req studio.Request, ttsEngine, voice string) (*Job, error) {
	job := &Job{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now(),
		status:    StatusQueued,
	}
	req.JobID = job.ID

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	select {
	case m.queue <- queued{job: job, req: req, ttsEngine: ttsEngine, voice: voice}:
	default:
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.mu.Unlock()
		return nil, ErrQueueFull
	}

	RecordJobStart()
	log.Info("job queued", "id", job.ID, "title", title)
	return job, nil
}

// Get returns a job by id.
func (m *Jobs) Get(id string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	return job, ok
}

// List returns all jobs, newest first.
func (m *Jobs) List() []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}

func (m *Jobs) run(ctx context.Context, q queued) {
	q.job.setStatus(StatusRunning)
	start := time.Now()

	producer, cleanup, err := m.factory(q.ttsEngine, q.voice)
	if err != nil {
		q.job.finish(StatusFailed, nil, err)
		RecordJobEnd(StatusFailed, time.Since(start))
		log.Error("job setup failed", "id", q.job.ID, "err", err)
		return
	}
	if cleanup != nil {
		defer cleanup()
	}

	events := make(chan studio.Event, 64)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		for ev := range events {
			RecordStageEvent(string(ev.Stage))
			q.job.publish(ev)
		}
	}()

	res, err := producer.Produce(ctx, q.req, events)
	close(events)
	<-relayDone

	elapsed := time.Since(start)
	if err != nil {
		q.job.finish(StatusFailed, nil, err)
		RecordJobEnd(StatusFailed, elapsed)
		log.Error("job failed", "id", q.job.ID, "err", err)
		return
	}

	q.job.finish(StatusDone, res.Outputs, nil)
	RecordJobEnd(StatusDone, elapsed)
	log.Info("job finished", "id", q.job.ID, "elapsed", elapsed.Round(time.Millisecond))

	if m.store != nil {
		rec := Record{
			ID:        q.job.ID,
			Title:     res.Board.Title,
			Params:    res.Board.Params,
			Outputs:   outputPaths(res.Outputs),
			Seconds:   elapsed.Seconds(),
			CreatedAt: q.job.CreatedAt,
		}
		if err := m.store.Add(rec); err != nil {
			log.Warn("recording render failed", "id", q.job.ID, "err", err)
		}
	}
}

func outputPaths(outputs []studio.Output) []string {
	paths := make([]string, len(outputs))
	for i, o := range outputs {
		paths[i] = o.Path
	}
	return paths
}
