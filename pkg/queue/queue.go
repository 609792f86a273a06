package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orderflow/hookq/pkg/core"
	"github.com/orderflow/hookq/pkg/security"
)

// Handler executes one job's payload. The payload is the opaque JSON
// blob captured at enqueue time; the queue never interprets it.
//
// Handlers must be idempotent: stuck-job recovery and retry can both
// re-dispatch a payload whose previous execution partially ran.
type Handler func(ctx context.Context, payload []byte) error

// Request describes one unit of work to ingest.
type Request struct {
	TenantID string
	Topic    string
	// Intent is the logical handler key. It may differ from Topic to
	// allow topic aliasing or multiple intents per topic.
	Intent  string
	Payload map[string]any

	// ExternalID is the upstream delivery id; equal (tenant, topic,
	// external id) triples are ingested at most once.
	ExternalID string
	// DedupEntityID collapses bursts for the same domain entity while
	// one job for it is still queued or processing.
	DedupEntityID string
	EventTime     *time.Time

	// Handler, when set, is registered under Intent iff no named
	// handler exists yet. A convenience only: jobs relying on it are
	// not replay-safe across process restarts. Named registration via
	// Service.Register always wins at dequeue time.
	Handler Handler
}

// Service is the durable webhook job queue. All mutable registries
// (handlers, per-tenant guards, reschedule timers) are fields here,
// never package state, so tests can run isolated instances.
type Service struct {
	store  core.JobStore
	locker core.Locker
	logger *slog.Logger
	cfg    Config

	hmu      sync.RWMutex
	handlers map[string]Handler

	mu       sync.Mutex
	draining map[string]struct{}
	timers   map[string]*time.Timer
	closed   bool

	wg sync.WaitGroup
}

// New creates a queue service with constructor-injected storage and
// lock dependencies.
func New(store core.JobStore, locker core.Locker, opts ...Option) *Service {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt.Apply(&cfg)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:    store,
		locker:   locker,
		logger:   logger.With("instance", uuid.NewString()[:8]),
		cfg:      cfg,
		handlers: make(map[string]Handler),
		draining: make(map[string]struct{}),
		timers:   make(map[string]*time.Timer),
	}
}

// Register binds a handler to an intent. Registration is idempotent:
// re-registering an intent overwrites the previous handler without
// error. Handlers live only in process memory and must be
// re-established on start.
func (s *Service) Register(intent string, h Handler) {
	s.hmu.Lock()
	s.handlers[intent] = h
	s.hmu.Unlock()
}

// HasHandler reports whether a handler is registered for the intent.
func (s *Service) HasHandler(intent string) bool {
	s.hmu.RLock()
	defer s.hmu.RUnlock()
	_, ok := s.handlers[intent]
	return ok
}

// registerFallback registers h only if the intent is still vacant.
func (s *Service) registerFallback(intent string, h Handler) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	if _, ok := s.handlers[intent]; !ok {
		s.handlers[intent] = h
	}
}

func (s *Service) handler(intent string) (Handler, bool) {
	s.hmu.RLock()
	defer s.hmu.RUnlock()
	h, ok := s.handlers[intent]
	return h, ok
}

// Enqueue validates, deduplicates, and persists one unit of work, then
// triggers the tenant's drain loop without blocking the caller.
//
// Validation failures are caller bugs: they are logged and returned,
// never persisted and never retried. Duplicate deliveries and
// collapsible same-entity bursts return nil without creating a job.
func (s *Service) Enqueue(ctx context.Context, req Request) error {
	if err := s.validate(req); err != nil {
		s.logger.Error("enqueue rejected",
			"tenant", req.TenantID,
			"topic", req.Topic,
			"intent", req.Intent,
			"error", err)
		return err
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		s.logger.Error("enqueue rejected", "tenant", req.TenantID, "intent", req.Intent, "error", err)
		return fmt.Errorf("hookq: failed to marshal payload: %w", err)
	}
	if len(payload) > security.MaxPayloadSize {
		s.logger.Error("enqueue rejected",
			"tenant", req.TenantID,
			"intent", req.Intent,
			"payload_bytes", len(payload),
			"error", core.ErrPayloadTooLarge)
		return core.ErrPayloadTooLarge
	}

	if req.ExternalID != "" {
		existing, err := s.store.FindByExternalID(ctx, req.TenantID, req.Topic, req.ExternalID)
		if err != nil {
			return fmt.Errorf("hookq: dedup lookup failed: %w", err)
		}
		if existing != nil {
			s.logger.Debug("duplicate delivery dropped",
				"tenant", req.TenantID,
				"topic", req.Topic,
				"external_id", req.ExternalID)
			return nil
		}
	} else if req.DedupEntityID != "" {
		existing, err := s.store.FindActiveByEntity(ctx, req.TenantID, req.Topic, req.DedupEntityID)
		if err != nil {
			return fmt.Errorf("hookq: dedup lookup failed: %w", err)
		}
		if existing != nil {
			s.logger.Debug("collapsed duplicate for in-flight entity",
				"tenant", req.TenantID,
				"topic", req.Topic,
				"entity_id", req.DedupEntityID)
			return nil
		}
	}

	if req.Handler != nil {
		// Register before the row becomes visible: a drain pass already
		// running for this tenant may claim the job the moment Create
		// commits, and a missing handler dead-letters it. Registration is
		// vacancy-guarded, so registering ahead of a failed Create is
		// harmless.
		s.registerFallback(req.Intent, req.Handler)
	}

	job := &core.Job{
		TenantID:      req.TenantID,
		Topic:         req.Topic,
		Intent:        req.Intent,
		Payload:       payload,
		ExternalID:    req.ExternalID,
		DedupEntityID: req.DedupEntityID,
		EventTime:     req.EventTime,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return err
	}

	s.logger.Info("job enqueued",
		"tenant", req.TenantID,
		"topic", req.Topic,
		"intent", req.Intent,
		"job_id", job.ID)

	s.TriggerDrain(req.TenantID)
	return nil
}

func (s *Service) validate(req Request) error {
	if err := security.ValidateTenantID(req.TenantID); err != nil {
		return err
	}
	if req.Topic == "" {
		return core.ErrEmptyTopic
	}
	if err := security.ValidateIntentName(req.Intent); err != nil {
		return err
	}
	if req.Payload == nil {
		return core.ErrInvalidPayload
	}
	return nil
}

// TriggerDrain starts a drain pass for the tenant in the background.
// Redundant triggers are cheap: the pass returns immediately when the
// tenant is already draining.
func (s *Service) TriggerDrain(tenantID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.drain(context.Background(), tenantID, 0)
	}()
}

// Drain runs one synchronous drain pass for the tenant. Exposed for
// callers that want to process a backlog inline (and for tests);
// normal ingestion uses the asynchronous trigger.
func (s *Service) Drain(ctx context.Context, tenantID string) {
	s.drain(ctx, tenantID, 0)
}

// WakeDueJobs finds tenants with due queued jobs and triggers their
// drain loops. Safe to call on any cadence: tenants already draining
// are skipped by the re-entrancy guard. Returns how many tenants were
// woken. This is the recovery path for backlogs whose reschedule
// timers died with a previous process.
func (s *Service) WakeDueJobs(ctx context.Context) (int, error) {
	tenants, err := s.store.DueTenants(ctx)
	if err != nil {
		return 0, fmt.Errorf("hookq: failed to list due tenants: %w", err)
	}
	for _, tenant := range tenants {
		s.TriggerDrain(tenant)
	}
	if len(tenants) > 0 {
		s.logger.Info("woke due tenants", "count", len(tenants))
	}
	return len(tenants), nil
}

// QueueSize reports jobs currently queued or processing.
func (s *Service) QueueSize(ctx context.Context) (int64, error) {
	return s.store.QueueSize(ctx)
}

// DeadLetterJobs returns the most recent dead-lettered jobs for
// operator inspection.
func (s *Service) DeadLetterJobs(ctx context.Context, limit int) ([]*core.Job, error) {
	return s.store.DeadLetters(ctx, limit)
}

// Close stops pending reschedule timers and waits for in-flight drain
// passes to finish.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	for tenant, t := range s.timers {
		t.Stop()
		delete(s.timers, tenant)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
