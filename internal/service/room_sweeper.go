package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/educonnect-api/internal/observability"
	"github.com/noah-isme/educonnect-api/internal/repository"
)

const defaultSweepInterval = time.Minute

// RoomSweeper periodically deletes chat rooms whose expiry has passed.
type RoomSweeper struct {
	rooms    repository.ChatRoomRepository
	redis    *redis.Client
	leaseKey string
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRoomSweeper constructs a sweeper. When redisClient is set, a lease keeps
// several API nodes from sweeping in the same tick.
func NewRoomSweeper(rooms repository.ChatRoomRepository, redisClient *redis.Client, channelBase string, interval time.Duration, logger zerolog.Logger) *RoomSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	leaseKey := "chat:sweeper:lease"
	if channelBase != "" {
		leaseKey = channelBase + ":" + leaseKey
	}

	return &RoomSweeper{
		rooms:    rooms,
		redis:    redisClient,
		leaseKey: leaseKey,
		interval: interval,
		logger:   logger.With().Str("component", "room_sweeper").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *RoomSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *RoomSweeper) tick(ctx context.Context) {
	if !s.acquireLease(ctx) {
		s.logger.Debug().Msg("sweep lease held by another node")
		return
	}
	s.Sweep(ctx)
}

func (s *RoomSweeper) acquireLease(ctx context.Context) bool {
	if s.redis == nil {
		return true
	}

	// Slightly shorter than the interval so the next tick can take it again.
	ttl := s.interval - s.interval/10
	acquired, err := s.redis.SetNX(ctx, s.leaseKey, "1", ttl).Result()
	if err != nil {
		s.logger.Warn().Err(err).Msg("sweep lease unavailable, sweeping anyway")
		return true
	}
	return acquired
}

// Sweep deletes every expired room and reports the result as a human-readable line.
// It never panics and never returns an error.
func (s *RoomSweeper) Sweep(ctx context.Context) (result string) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			s.logger.Error().Err(err).Msg("room sweep failed")
			observability.RoomSweeps().WithLabelValues("error").Inc()
			result = fmt.Sprintf("Error occurred: %s", err)
		}
	}()

	s.logger.Info().Msg("Running delete_expired_rooms task")

	deleted, err := s.rooms.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("room sweep failed")
		observability.RoomSweeps().WithLabelValues("error").Inc()
		return fmt.Sprintf("Error occurred: %s", err)
	}

	s.logger.Info().Int64("rooms", deleted).Msgf("Deleted %d expired rooms successfully.", deleted)
	observability.RoomSweeps().WithLabelValues("success").Inc()
	observability.RoomsExpired().Add(float64(deleted))

	return fmt.Sprintf("Deleted %d expired rooms.", deleted)
}
