package monitor

import (
	"context"
	"fmt"
	"time"

	"emailbot-backend/config"
	"emailbot-backend/internal/cache"
	"emailbot-backend/internal/database"

	"github.com/rs/zerolog"
)

// HeartbeatRequest is one liveness report from a bot instance
type HeartbeatRequest struct {
	MachineID string `json:"machine_id" binding:"required"`
	Status    string `json:"status"`
	Version   string `json:"version"`
}

// HeartbeatResponse tells the bot whether an admin paused it remotely
type HeartbeatResponse struct {
	ShouldPause bool      `json:"should_pause"`
	ServerTime  time.Time `json:"server_time"`
}

// FleetView is the admin dashboard snapshot. PresenceCount is the number of
// live Redis presence markers; it trails ActiveCount because markers expire
// on their own TTL rather than the active window.
type FleetView struct {
	Machines      []database.HeartbeatWithUser `json:"machines"`
	ActiveCount   int                          `json:"active_count"`
	TotalCount    int                          `json:"total_count"`
	PresenceCount int64                        `json:"presence_count,omitempty"`
	Window        string                       `json:"window"`
}

// Service tracks the bot fleet through heartbeats
type Service struct {
	repo   *database.Repository
	cache  *cache.CacheService
	hub    *Hub
	cfg    config.MonitorConfig
	logger zerolog.Logger
}

// NewService creates a new monitor service. The cache may be nil when Redis
// is disabled; presence markers are skipped in that case.
func NewService(repo *database.Repository, cacheService *cache.CacheService, hub *Hub, cfg config.MonitorConfig, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cacheService,
		hub:    hub,
		cfg:    cfg,
		logger: logger.With().Str("component", "monitor").Logger(),
	}
}

// RecordHeartbeat upserts the liveness row for one user+machine pair and
// reports back the remote pause flag
func (s *Service) RecordHeartbeat(ctx context.Context, userID string, req HeartbeatRequest, ip string) (*HeartbeatResponse, error) {
	hb := &database.Heartbeat{
		UserID:    userID,
		MachineID: req.MachineID,
		Status:    req.Status,
	}
	if req.Version != "" {
		hb.Version = &req.Version
	}
	if ip != "" {
		hb.IP = &ip
	}

	if err := s.repo.UpsertHeartbeat(ctx, hb); err != nil {
		return nil, err
	}

	// Presence marker is advisory; Redis being down never fails a heartbeat
	if s.cache != nil {
		key := cache.PresenceKey(userID, req.MachineID)
		if err := s.cache.Set(ctx, key, hb.LastSeen.Format(time.RFC3339), cache.DefaultPresenceTTL); err != nil {
			s.logger.Debug().Err(err).Msg("presence marker not written")
		}
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(Event{
			Type: EventHeartbeat,
			Data: map[string]interface{}{
				"user_id":    userID,
				"machine_id": req.MachineID,
				"status":     hb.Status,
				"paused":     hb.Paused,
				"last_seen":  hb.LastSeen,
			},
		})
	}

	return &HeartbeatResponse{
		ShouldPause: hb.Paused,
		ServerTime:  time.Now().UTC(),
	}, nil
}

// Fleet builds the admin dashboard snapshot
func (s *Service) Fleet(ctx context.Context) (*FleetView, error) {
	machines, err := s.repo.ListHeartbeats(ctx, s.cfg.FleetListLimit)
	if err != nil {
		return nil, err
	}

	active := 0
	cutoff := time.Now().Add(-s.cfg.ActiveWindow)
	for _, m := range machines {
		if m.LastSeen.After(cutoff) {
			active++
		}
	}

	view := &FleetView{
		Machines:    machines,
		ActiveCount: active,
		TotalCount:  len(machines),
		Window:      s.cfg.ActiveWindow.String(),
	}

	if s.cache != nil {
		if n, err := s.cache.CountKeys(ctx, cache.PresencePattern()); err == nil {
			view.PresenceCount = n
		}
	}

	return view, nil
}

// ActiveMachines lists machines seen within the configured window
func (s *Service) ActiveMachines(ctx context.Context) ([]database.HeartbeatWithUser, error) {
	return s.repo.ListActiveHeartbeats(ctx, s.cfg.ActiveWindow)
}

// SetPaused flips the remote pause flag on one machine
func (s *Service) SetPaused(ctx context.Context, heartbeatID string, paused bool) (*database.Heartbeat, error) {
	if err := s.repo.SetHeartbeatPaused(ctx, heartbeatID, paused); err != nil {
		return nil, err
	}

	hb, err := s.repo.GetHeartbeat(ctx, heartbeatID)
	if err != nil {
		return nil, err
	}
	if hb == nil {
		return nil, fmt.Errorf("heartbeat not found: %s", heartbeatID)
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(Event{
			Type: EventPauseChanged,
			Data: map[string]interface{}{
				"heartbeat_id": hb.ID,
				"user_id":      hb.UserID,
				"machine_id":   hb.MachineID,
				"paused":       hb.Paused,
			},
		})
	}

	return hb, nil
}

// RunBroadcaster pushes a fleet snapshot to connected dashboards on a fixed
// period until the context is cancelled, and raises a notification whenever a
// machine falls out of the active window
func (s *Service) RunBroadcaster(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.BroadcastPeriod)
	defer ticker.Stop()

	wasActive := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fleet, err := s.Fleet(ctx)
			if err != nil {
				s.logger.Error().Err(err).Msg("fleet snapshot failed")
				continue
			}

			s.notifyOffline(ctx, fleet.Machines, wasActive)

			if s.hub != nil && s.hub.GetClientCount() > 0 {
				s.hub.BroadcastEvent(Event{Type: EventFleetSnapshot, Data: fleet})
			}
		}
	}
}

// notifyOffline compares the current active set against the previous tick and
// records one notification per machine that just went dark
func (s *Service) notifyOffline(ctx context.Context, machines []database.HeartbeatWithUser, wasActive map[string]bool) {
	cutoff := time.Now().Add(-s.cfg.ActiveWindow)

	for _, m := range machines {
		active := m.LastSeen.After(cutoff)
		if wasActive[m.ID] && !active {
			entityType := "heartbeat"
			n := &database.Notification{
				Kind:       "machine_offline",
				Message:    fmt.Sprintf("machine %s stopped sending heartbeats", m.MachineID),
				EntityType: &entityType,
				EntityID:   &m.ID,
			}
			if err := s.repo.CreateNotification(ctx, n); err != nil {
				s.logger.Warn().Err(err).Str("machine_id", m.MachineID).Msg("offline notification not recorded")
			}
		}
		wasActive[m.ID] = active
	}
}
