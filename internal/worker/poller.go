package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"contentops/internal/config"
	"contentops/internal/domain"
	"contentops/internal/events"
	"contentops/internal/metrics"
	"contentops/internal/models"

	"github.com/rs/zerolog"
)

type ServerState string

const (
	ServerReachable   ServerState = "reachable"
	ServerUnreachable ServerState = "unreachable"
)

var ErrTrackingReplaced = errors.New("tracked task replaced by a newer one")

// Poller narrates the single tracked task. Each tick fetches the whole task
// map; failures back off exponentially and, past the threshold, flip the
// server state to unreachable until the next successful fetch.
type Poller struct {
	source           domain.TaskSource
	tracker          domain.TaskTracker
	events           domain.EventPublisher
	retry            RetryPolicy
	interval         time.Duration
	unreachableAfter int
	logger           *zerolog.Logger

	tickMu       sync.Mutex
	mu           sync.Mutex
	failures     int
	state        ServerState
	lastProgress string
	settled      map[string]models.Task
}

func NewPoller(source domain.TaskSource, tracker domain.TaskTracker, publisher domain.EventPublisher, cfg config.PollerConfig, logger *zerolog.Logger) *Poller {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	threshold := cfg.UnreachableAfter
	if threshold < 1 {
		threshold = 3
	}
	retry := RetryPolicyFromConfig(cfg)
	retry.InitialDelay = interval

	return &Poller{
		source:           source,
		tracker:          tracker,
		events:           publisher,
		retry:            retry,
		interval:         interval,
		unreachableAfter: threshold,
		logger:           logger,
		state:            ServerReachable,
		settled:          make(map[string]models.Task),
	}
}

// Track makes id the narrated task, replacing any previous one.
func (p *Poller) Track(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("empty task id")
	}
	if err := p.tracker.SetLastTaskID(ctx, id); err != nil {
		return fmt.Errorf("track task %s: %w", id, err)
	}
	p.mu.Lock()
	p.lastProgress = ""
	p.mu.Unlock()
	return nil
}

func (p *Poller) State() ServerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) ConsecutiveFailures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().Dur("interval", p.interval).Msg("Task poller started")
	for {
		if err := p.Tick(ctx); err != nil && ctx.Err() == nil {
			p.logger.Debug().Err(err).Msg("poll failed")
		}

		timer := time.NewTimer(p.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info().Msg("Task poller stopped")
			return nil
		case <-timer.C:
		}
	}
}

// Wait polls until taskID settles and returns its final state. The task is
// looked up in the fetched map directly, so it still settles when another
// poller sharing the tracker cleared the id first.
func (p *Poller) Wait(ctx context.Context, taskID string) (models.Task, error) {
	for {
		tasks, _ := p.poll(ctx)

		if t, ok := p.settledTask(taskID); ok {
			return t, nil
		}
		if t, ok := tasks[taskID]; ok && t.IsTerminal() {
			t.ID = taskID
			p.settle(ctx, t)
			return t, nil
		}
		tracked, err := p.tracker.LastTaskID(ctx)
		if err == nil && tracked != "" && tracked != taskID {
			return models.Task{}, ErrTrackingReplaced
		}

		timer := time.NewTimer(p.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return models.Task{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *Poller) nextDelay() time.Duration {
	if n := p.ConsecutiveFailures(); n > 0 {
		return p.retry.NextDelay(n)
	}
	return p.interval
}

// Tick runs one poll. It returns the fetch error, if any, after accounting
// for it in the server state.
func (p *Poller) Tick(ctx context.Context) error {
	_, err := p.poll(ctx)
	return err
}

// poll is Tick that also hands back the fetched task map, nil on a failed
// fetch.
func (p *Poller) poll(ctx context.Context) (map[string]models.Task, error) {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	tasks, err := p.source.Tasks(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		p.recordFailure(err)
		return nil, err
	}
	p.recordSuccess()

	id, err := p.tracker.LastTaskID(ctx)
	if err != nil {
		metrics.IncPoll("error")
		return tasks, fmt.Errorf("read tracked task: %w", err)
	}
	if id == "" {
		metrics.IncPoll("idle")
		return tasks, nil
	}

	task, ok := tasks[id]
	if !ok {
		metrics.IncPoll("idle")
		return tasks, nil
	}
	task.ID = id
	metrics.IncPoll("ok")

	if task.IsTerminal() {
		p.settle(ctx, task)
		return tasks, nil
	}
	p.progress(task)
	return tasks, nil
}

func (p *Poller) progress(task models.Task) {
	key := task.ID + "\x00" + task.Status + "\x00" + task.Progress + "\x00" + task.Message
	p.mu.Lock()
	if key == p.lastProgress {
		p.mu.Unlock()
		return
	}
	p.lastProgress = key
	p.mu.Unlock()

	p.publish(events.EventTaskProgress, taskPayload(task))
}

// settle clears the tracked id while it still names task and emits the
// terminal event once. A task already settled in this process is never
// announced again, even if the tracker failed to clear.
func (p *Poller) settle(ctx context.Context, task models.Task) {
	p.mu.Lock()
	_, seen := p.settled[task.ID]
	p.settled[task.ID] = task
	p.lastProgress = ""
	p.mu.Unlock()

	if tracked, err := p.tracker.LastTaskID(ctx); err == nil && tracked == task.ID {
		if err := p.tracker.ClearLastTaskID(ctx); err != nil {
			p.logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to clear tracked task")
		}
	}
	if seen {
		return
	}

	eventType := events.EventTaskSucceeded
	if task.Status == models.TaskError {
		eventType = events.EventTaskFailed
	}
	p.publish(eventType, taskPayload(task))
}

func (p *Poller) settledTask(id string) (models.Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.settled[id]
	return t, ok
}

func (p *Poller) recordFailure(err error) {
	metrics.IncPoll("error")

	p.mu.Lock()
	p.failures++
	failures := p.failures
	crossed := failures >= p.unreachableAfter && p.state == ServerReachable
	if crossed {
		p.state = ServerUnreachable
	}
	p.mu.Unlock()

	if !crossed {
		return
	}
	metrics.SetReachable(false)
	p.logger.Warn().Err(err).Int("failures", failures).Msg("Task server unreachable")
	p.publish(events.EventServerUnreachable, events.ServerEventPayload{
		ConsecutiveFailures: failures,
		LastError:           err.Error(),
	})
}

func (p *Poller) recordSuccess() {
	p.mu.Lock()
	failures := p.failures
	recovered := p.state == ServerUnreachable
	p.failures = 0
	p.state = ServerReachable
	p.mu.Unlock()

	if !recovered {
		return
	}
	metrics.SetReachable(true)
	p.logger.Info().Int("failures", failures).Msg("Task server recovered")
	p.publish(events.EventServerRecovered, events.ServerEventPayload{ConsecutiveFailures: failures})
}

func (p *Poller) publish(eventType string, payload any) {
	if p.events == nil {
		return
	}
	if err := p.events.PublishJSON(eventType, payload); err != nil {
		p.logger.Error().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

func taskPayload(t models.Task) events.TaskEventPayload {
	return events.TaskEventPayload{
		TaskID:   t.ID,
		Status:   t.Status,
		Progress: t.Progress,
		Message:  t.Message,
		PostID:   t.PostID(),
	}
}
