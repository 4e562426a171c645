// Package engine runs the per-event decision pipeline: detect friction, score
// it, gate and decide, then resolve context and render the intervention.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lazypower/nudge/internal/event"
	"github.com/lazypower/nudge/internal/friction"
	"github.com/lazypower/nudge/internal/gate"
	"github.com/lazypower/nudge/internal/metrics"
	"github.com/lazypower/nudge/internal/resolver"
	"github.com/lazypower/nudge/internal/scoring"
	"github.com/lazypower/nudge/internal/script"
	"github.com/lazypower/nudge/internal/session"
	"github.com/lazypower/nudge/internal/shop"
	"github.com/lazypower/nudge/internal/store"
)

// DefaultDismissWindow is how long a dismissal blocks further interventions.
const DefaultDismissWindow = 10 * time.Minute

var (
	// ErrInvalidEvent is returned for events without a session or type.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrPipelinePanic wraps a recovered panic from one session's pipeline.
	ErrPipelinePanic = errors.New("pipeline panic")
)

// ContextSource exposes the tracker read models for a session.
type ContextSource interface {
	Snapshot(sessionID string) shop.Snapshot
}

// Observer is implemented by context sources fed from the same event stream
// the engine scores. The engine feeds them before detection.
type Observer interface {
	Observe(ev event.Event)
}

// Forgetter is implemented by context sources that can drop a session.
type Forgetter interface {
	Forget(sessionID string)
}

// Publisher delivers fired decisions.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, d *Decision) error
}

// Engine is safe for concurrent use. Events for one session are processed one
// at a time; different sessions proceed in parallel.
type Engine struct {
	DB *store.DB

	sessions   session.Store
	contexts   ContextSource
	registry   *friction.Registry
	gatekeeper *gate.Gatekeeper
	publishers []Publisher
	locks      session.KeyedMutex
	log        *zap.Logger
	clock      func() time.Time
	rng        gate.Rand
	baseline   float64

	mu            sync.RWMutex
	policy        gate.Policy
	dismissWindow time.Duration

	// seen holds the server receive time of each live session's last event.
	seenMu sync.Mutex
	seen   map[string]time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for event timestamps and queries.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.clock = now }
}

// WithRand sets the random source for probabilistic decisions. It is
// guarded by the engine, so a plain *rand.Rand is fine.
func WithRand(r gate.Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.rng = &lockedRand{r: r}
		}
	}
}

// WithSeed seeds a PCG random source.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// WithPolicy sets the decision policy.
func WithPolicy(p gate.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithContextSource sets the tracker read models.
func WithContextSource(src ContextSource) Option {
	return func(e *Engine) { e.contexts = src }
}

// WithRegistry replaces the detector registry.
func WithRegistry(r *friction.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithGatekeeper replaces the rule table.
func WithGatekeeper(g *gate.Gatekeeper) Option {
	return func(e *Engine) { e.gatekeeper = g }
}

// WithPublisher appends a publisher. Publishers run in registration order.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publishers = append(e.publishers, p) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithDB enables the intervention journal.
func WithDB(db *store.DB) Option {
	return func(e *Engine) { e.DB = db }
}

// WithDismissWindow sets how long a dismissal blocks interventions.
func WithDismissWindow(d time.Duration) Option {
	return func(e *Engine) { e.dismissWindow = d }
}

// New creates an Engine backed by sessions.
func New(sessions session.Store, opts ...Option) *Engine {
	e := &Engine{
		sessions:      sessions,
		registry:      friction.Default(),
		gatekeeper:    gate.NewGatekeeper(nil),
		log:           zap.NewNop(),
		clock:         time.Now,
		baseline:      scoring.DefaultClarityBaseline,
		policy:        gate.SoftThresholdPolicy{},
		dismissWindow: DefaultDismissWindow,
		seen:          make(map[string]time.Time),
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = &lockedRand{r: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))}
	}
	e.log = e.log.Named("engine")
	return e
}

// SetPolicy swaps the decision policy.
func (e *Engine) SetPolicy(p gate.Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = p
}

// Policy returns the active decision policy.
func (e *Engine) Policy() gate.Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// SetDismissWindow changes the dismissal window.
func (e *Engine) SetDismissWindow(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dismissWindow = d
}

func (e *Engine) decisionConfig() (gate.Policy, time.Duration) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy, e.dismissWindow
}

func (e *Engine) snapshot(sessionID string) shop.Snapshot {
	if e.contexts == nil {
		return shop.Snapshot{}
	}
	return e.contexts.Snapshot(sessionID)
}

// Process runs one event through the pipeline. It returns the fired decision
// or nil when nothing fires. A zero event timestamp is set from the clock.
func (e *Engine) Process(ctx context.Context, ev event.Event) (d *Decision, err error) {
	if ev.SessionID == "" || ev.Type == "" {
		return nil, fmt.Errorf("process event: %w", ErrInvalidEvent)
	}
	received := e.clock()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = received
	}
	start := time.Now()
	defer func() { metrics.PipelineDuration.Observe(time.Since(start).Seconds()) }()
	metrics.EventsTotal.WithLabelValues(ev.Type).Inc()

	unlock := e.locks.Lock(ev.SessionID)
	defer unlock()
	release, err := e.lease(ctx, ev.SessionID)
	if err != nil {
		return nil, fmt.Errorf("process event: %w", err)
	}
	defer release()

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("pipeline panic",
				zap.String("session_id", ev.SessionID),
				zap.String("event_type", ev.Type),
				zap.Any("panic", r),
			)
			metrics.DecisionsTotal.WithLabelValues(metrics.OutcomeError, "").Inc()
			d, err = nil, fmt.Errorf("%w: %v", ErrPipelinePanic, r)
		}
	}()

	sess, err := e.sessions.Get(ctx, ev.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		sess = session.New(ev.SessionID)
	}
	e.markSeen(ev.SessionID, received)

	if obs, ok := e.contexts.(Observer); ok {
		obs.Observe(ev)
	}

	d = e.evaluate(sess, ev)

	sess.UpdatedAt = ev.Timestamp
	if err := e.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	if d != nil {
		e.journal(d, sess)
		e.publish(ctx, d)
	}
	return d, nil
}

// evaluate mutates sess for ev and returns the fired decision, if any.
func (e *Engine) evaluate(sess *session.Session, ev event.Event) *Decision {
	at := ev.Timestamp
	sess.Ledger.Touch(at)
	sess.Events++

	switch ev.Type {
	case event.Dismissed:
		sess.DismissedAt = at
		sess.History.Push(ev)
		return nil
	case event.PaymentStepEnter:
		sess.InPayment = true
		sess.History.Push(ev)
		return nil
	case event.PaymentStepExit:
		sess.InPayment = false
		sess.History.Push(ev)
		return nil
	}

	snap := e.snapshot(sess.ID)
	detections := e.registry.Detect(ev, sess.History.Events, snap)
	sess.History.Push(ev)

	for _, det := range detections {
		metrics.DetectionsTotal.WithLabelValues(string(det.Type)).Inc()
		base, ok := scoring.FrictionDelta(det.Type)
		if !ok {
			continue
		}
		sess.Score.Apply(scoring.FrictionKey(det), base, det.Confidence, at)
	}
	if base, ok := scoring.EngagementDelta(ev.Type); ok {
		sess.Score.Apply(scoring.EngagementKey(ev.Type), base, 1.0, at)
	}

	if len(detections) == 0 {
		return nil
	}

	byType := make(map[friction.Type]friction.Detection, len(detections))
	var types []friction.Type
	for _, det := range detections {
		if _, seen := byType[det.Type]; !seen {
			byType[det.Type] = det
			types = append(types, det.Type)
		}
	}

	var (
		chosen friction.Type
		found  bool
	)
	for _, t := range e.gatekeeper.ByPriority(types) {
		ok, reason, err := e.gatekeeper.CanFire(&sess.Ledger, t, snap.Counters, at)
		if err != nil {
			e.log.Warn("gate skipped",
				zap.String("session_id", sess.ID),
				zap.String("type", string(t)),
				zap.Error(err),
			)
			metrics.DecisionsTotal.WithLabelValues(metrics.OutcomeSkipped, string(t)).Inc()
			continue
		}
		if !ok {
			e.log.Debug("gate denied",
				zap.String("session_id", sess.ID),
				zap.String("type", string(t)),
				zap.String("reason", reason),
			)
			metrics.DecisionsTotal.WithLabelValues(metrics.OutcomeDenied, string(t)).Inc()
			continue
		}
		chosen, found = t, true
		break
	}
	if !found {
		return nil
	}

	policy, window := e.decisionConfig()
	scores := sess.Score.Current(at, e.baseline)
	res := policy.Decide(gate.Input{
		Type:       chosen,
		Scores:     scores,
		Dismissed:  sess.Dismissed(at, window),
		InPayment:  sess.InPayment,
		SessionAge: sess.Ledger.Age(at),
	}, e.rng)
	metrics.FireProbability.Observe(res.Probability)

	if !res.Fire {
		e.log.Debug("policy declined",
			zap.String("session_id", sess.ID),
			zap.String("type", string(chosen)),
			zap.String("reason", res.Reason),
			zap.Float64("probability", res.Probability),
		)
		metrics.DecisionsTotal.WithLabelValues(metrics.OutcomeDenied, string(chosen)).Inc()
		return nil
	}

	det := byType[chosen]
	rule, _ := e.gatekeeper.Rule(chosen)
	stage := e.gatekeeper.Stage(&sess.Ledger, chosen)
	rctx := resolver.Resolve(chosen, ev, resolver.FromSnapshot(snap, &det), at)
	gen := script.Generate(chosen, rctx, stage)
	sess.Ledger.Append(chosen, at, gen.Script)

	metrics.DecisionsTotal.WithLabelValues(metrics.OutcomeFired, string(chosen)).Inc()
	e.log.Info("intervention fired",
		zap.String("session_id", sess.ID),
		zap.String("type", string(chosen)),
		zap.Int("stage", stage),
		zap.Float64("probability", res.Probability),
	)

	return &Decision{
		ID:           uuid.NewString(),
		SessionID:    sess.ID,
		Type:         chosen,
		Priority:     rule.Priority,
		Stage:        stage,
		Probability:  res.Probability,
		Reason:       res.Reason,
		Policy:       policy.Name(),
		Scores:       scores,
		Context:      rctx,
		Intervention: gen,
		At:           at,
	}
}

func (e *Engine) journal(d *Decision, sess *session.Session) {
	if e.DB == nil {
		return
	}
	if err := e.DB.AddIntervention(d.record(), sess.Ledger.StartedAt); err != nil {
		e.log.Warn("journal failed", zap.String("decision_id", d.ID), zap.Error(err))
	}
}

func (e *Engine) publish(ctx context.Context, d *Decision) {
	for _, p := range e.publishers {
		if err := p.Publish(ctx, d); err != nil {
			metrics.PublishTotal.WithLabelValues(p.Name(), "error").Inc()
			e.log.Warn("publish failed",
				zap.String("publisher", p.Name()),
				zap.String("decision_id", d.ID),
				zap.Error(err),
			)
			continue
		}
		metrics.PublishTotal.WithLabelValues(p.Name(), "success").Inc()
	}
}

// Snapshot returns current scores and the contribution breakdown for a
// session, or nil when the session is unknown.
func (e *Engine) Snapshot(ctx context.Context, sessionID string) (*ScoreSnapshot, error) {
	unlock := e.locks.Lock(sessionID)
	defer unlock()

	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}

	now := e.clock()
	_, window := e.decisionConfig()
	b := sess.Score.Breakdown(now, e.baseline, scoring.ActiveThreshold)
	age := sess.Ledger.Age(now)
	return &ScoreSnapshot{
		SessionID:     sessionID,
		At:            now,
		SessionAgeMs:  age.Milliseconds(),
		Breakdown:     b,
		Probability:   gate.CalculateInterventionProbability(b.Scores, age),
		Dismissed:     sess.Dismissed(now, window),
		InPayment:     sess.InPayment,
		Events:        sess.Events,
		Interventions: append([]gate.Record(nil), sess.Ledger.Records...),
	}, nil
}

// EndSession drops a session's state everywhere the engine knows about.
func (e *Engine) EndSession(ctx context.Context, sessionID string) error {
	unlock := e.locks.Lock(sessionID)
	defer unlock()
	release, err := e.lease(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	defer release()
	return e.endLocked(ctx, sessionID)
}

// lease takes the store's cross-process lease for a session when the store
// is shared. The caller must hold the session's local lock.
func (e *Engine) lease(ctx context.Context, sessionID string) (func(), error) {
	l, ok := e.sessions.(session.Leaser)
	if !ok {
		return func() {}, nil
	}
	release, err := l.Lease(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := release(); err != nil {
			e.log.Warn("release session lease", zap.String("session_id", sessionID), zap.Error(err))
		}
	}, nil
}

// endLocked ends a session whose lock the caller holds.
func (e *Engine) endLocked(ctx context.Context, sessionID string) error {
	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	e.seenMu.Lock()
	delete(e.seen, sessionID)
	e.seenMu.Unlock()
	if f, ok := e.contexts.(Forgetter); ok {
		f.Forget(sessionID)
	}
	if e.DB != nil {
		if err := e.DB.EndSession(sessionID, e.clock()); err != nil {
			e.log.Warn("journal end session failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return nil
}

// lockedRand makes a random source safe for concurrent sessions.
type lockedRand struct {
	mu sync.Mutex
	r  gate.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}
