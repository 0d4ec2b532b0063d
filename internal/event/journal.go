package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/guardbot/guardbot/internal/db"
)

const (
	kvKeyLastIncidentPrune = "last_incident_prune"

	pruneCheckInterval = time.Hour
	pruneEvery         = 24 * time.Hour
)

// Recorder persists incident rows and the bookkeeping around them. Satisfied
// by the sqlite client.
type Recorder interface {
	RecordIncident(ctx context.Context, incident *db.Incident) error
	PruneIncidents(ctx context.Context, before time.Time) (int64, error)
	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key string, value string) error
}

// Journal writes moderation incidents to storage off the hot path. Enqueue
// never blocks message processing; a full queue drops the record instead of
// stalling the handler chain. When a retention window is set, a background
// worker prunes incidents older than the window once a day.
type Journal struct {
	recorder   Recorder
	retention  time.Duration
	queue      chan *db.Incident
	runtimeCtx context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	started    bool
}

func NewJournal(recorder Recorder, queueSize int, retention time.Duration) *Journal {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Journal{
		recorder:  recorder,
		retention: retention,
		queue:     make(chan *db.Incident, queueSize),
	}
}

// Enqueue hands an incident to the background writer, assigning an ID and
// timestamp when the caller left them empty.
func (j *Journal) Enqueue(incident *db.Incident) {
	if incident == nil {
		return
	}
	if incident.ID == "" {
		incident.ID = uuid.New()
	}
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = time.Now().UTC()
	}
	select {
	case j.queue <- incident:
	default:
		j.getLogEntry().
			WithField("chat_id", incident.ChatID).
			WithField("rule", incident.Rule).
			Warn("incident queue full, dropping record")
	}
}

func (j *Journal) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started {
		return nil
	}
	j.runtimeCtx, j.cancel = context.WithCancel(ctx)
	j.started = true

	j.wg.Add(1)
	go j.run()

	if j.retention > 0 {
		j.wg.Add(1)
		go j.prune()
	}
	return nil
}

func (j *Journal) run() {
	defer j.wg.Done()
	for {
		select {
		case <-j.runtimeCtx.Done():
			return
		case incident := <-j.queue:
			j.write(j.runtimeCtx, incident)
		}
	}
}

func (j *Journal) prune() {
	defer j.wg.Done()

	if err := j.pruneIfDue(j.runtimeCtx); err != nil && !errorsIsCanceled(err) {
		j.getLogEntry().WithError(err).Error("cant prune incidents")
	}

	ticker := time.NewTicker(pruneCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-j.runtimeCtx.Done():
			return
		case <-ticker.C:
			if err := j.pruneIfDue(j.runtimeCtx); err != nil && !errorsIsCanceled(err) {
				j.getLogEntry().WithError(err).Error("cant prune incidents")
			}
		}
	}
}

func (j *Journal) pruneIfDue(ctx context.Context) error {
	raw, err := j.recorder.GetKV(ctx, kvKeyLastIncidentPrune)
	if err != nil {
		j.getLogEntry().WithError(err).Debug("cant get last prune time")
	}
	if raw != "" {
		if last, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil && time.Since(last) < pruneEvery {
			return nil
		}
	}

	pruned, err := j.recorder.PruneIncidents(ctx, time.Now().Add(-j.retention))
	if err != nil {
		return fmt.Errorf("prune incidents: %w", err)
	}
	if pruned > 0 {
		j.getLogEntry().Infof("pruned %d incident records", pruned)
	}
	return j.recorder.SetKV(ctx, kvKeyLastIncidentPrune, time.Now().UTC().Format(time.RFC3339))
}

// Stop shuts the workers down and flushes whatever is still queued using the
// caller's context.
func (j *Journal) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.started {
		j.mu.Unlock()
		return nil
	}
	j.started = false
	cancel := j.cancel
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		j.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	for {
		select {
		case incident := <-j.queue:
			j.write(ctx, incident)
		default:
			return nil
		}
	}
}

func (j *Journal) write(ctx context.Context, incident *db.Incident) {
	if err := j.recorder.RecordIncident(ctx, incident); err != nil {
		j.getLogEntry().
			WithError(err).
			WithField("chat_id", incident.ChatID).
			Error("cant record incident")
	}
}

func (j *Journal) getLogEntry() *log.Entry {
	return log.WithField("object", "Journal")
}

func errorsIsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
