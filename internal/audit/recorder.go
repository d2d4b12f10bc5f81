package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"emailbot-backend/internal/database"

	"github.com/rs/zerolog"
)

const (
	queueSize    = 256
	writeTimeout = 5 * time.Second
)

// Recorder writes audit entries off the request path. Record never blocks:
// when the queue is full the entry is dropped and counted.
type Recorder struct {
	repo    *database.Repository
	logger  zerolog.Logger
	queue   chan database.AuditEntry
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	dropped int64
	closed  bool
}

// NewRecorder creates a recorder and starts its writer goroutine
func NewRecorder(repo *database.Repository, logger zerolog.Logger) *Recorder {
	r := &Recorder{
		repo:   repo,
		logger: logger.With().Str("component", "audit").Logger(),
		queue:  make(chan database.AuditEntry, queueSize),
		done:   make(chan struct{}),
	}

	r.wg.Add(1)
	go r.run()

	return r
}

// Record enqueues one audit entry. Safe for concurrent use.
func (r *Recorder) Record(userID, action, entityType, entityID string, details map[string]interface{}, ip string) {
	entry := database.AuditEntry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IP:         ip,
	}
	if userID != "" {
		entry.UserID = &userID
	}
	if len(details) > 0 {
		data, err := json.Marshal(details)
		if err != nil {
			r.logger.Error().Err(err).Str("action", action).Msg("failed to marshal audit details")
		} else {
			entry.Details = data
		}
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}

	select {
	case r.queue <- entry:
	default:
		r.mu.Lock()
		r.dropped++
		dropped := r.dropped
		r.mu.Unlock()
		r.logger.Warn().Int64("dropped_total", dropped).Str("action", action).Msg("audit queue full, entry dropped")
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case entry := <-r.queue:
			r.write(entry)
		case <-r.done:
			// Drain whatever is still queued before exiting
			for {
				select {
				case entry := <-r.queue:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry database.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.repo.InsertAuditEntry(ctx, &entry); err != nil {
		r.logger.Error().Err(err).Str("action", entry.Action).Msg("failed to persist audit entry")
	}
}

// Dropped returns how many entries have been discarded due to backpressure
func (r *Recorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops the writer after draining the queue
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.done)
	r.wg.Wait()
}
