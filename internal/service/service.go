package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"fiado/backend/internal/cache"
	"fiado/backend/internal/domain"
	"fiado/backend/internal/metrics"
	"fiado/backend/internal/store"
	"fiado/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service is the engine surface used by the UI and the HTTP adapter. Every
// ledger mutation goes through writeMu so stock checks and decrements never
// interleave between callers.
type Service struct {
	repo     store.Repository
	cache    cache.ReportCache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time

	writeMu    sync.Mutex
	generation atomic.Uint64

	scheduleMu sync.Mutex
	onSchedule func(spec string) error
}

// RefreshScheduleKey is the config key holding the cron schedule of the
// background report refresh. An empty value pauses it.
const RefreshScheduleKey = "report_refresh_spec"

type Option func(*Service)

func WithReportCache(c cache.ReportCache, ttl time.Duration) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(repo store.Repository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		repo:     repo,
		cache:    cache.NoopReportCache{},
		cacheTTL: 30 * time.Second,
		logger:   logger,
		validate: newValidator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnRefreshScheduleChange registers the callback that applies a new
// RefreshScheduleKey value. A callback error rejects the setting.
func (s *Service) OnRefreshScheduleChange(fn func(spec string) error) {
	s.scheduleMu.Lock()
	defer s.scheduleMu.Unlock()
	s.onSchedule = fn
}

// mutate runs fn under the writer lock and invalidates cached reports.
func (s *Service) mutate(fn func() error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	defer s.generation.Add(1)

	return fn()
}

// timestamp is the current UTC time at the precision both stores keep.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		Actor:      actor.Username,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.timestamp(),
	}); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity", fmt.Sprintf("%s/%s", entityType, entityID)),
			zap.Error(err),
		)
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, limit)
}
