package game

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"volley-club/internal/game/court"
	"volley-club/internal/game/physics"
	"volley-club/internal/game/possession"
	"volley-club/internal/game/vec"
)

// Engine drives a match at a fixed tick rate: physics first, then every
// agent, then a snapshot for lock-free readers.
type Engine struct {
	mu sync.RWMutex

	world    *physics.World
	match    *Match
	launcher *BallLauncher
	anim     *AnimationTracker

	tickRate int
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}

	tickCount uint64

	// Snapshot system for lock-free readers
	snapshotPool *SnapshotPool

	// Event sourcing for replay and debugging
	eventLog *EventLog

	// Deterministic RNG seed chain for replay consistency
	rng     *rand.Rand
	rngSeed int64

	// Hooks, called on the tick goroutine with the lock held
	onEvent func(Event)
	onTick  func(d time.Duration)
}

// NewEngine creates the physics world and the match
func NewEngine(cfg MatchConfig, tickRate int) (*Engine, error) {
	if tickRate <= 0 {
		return nil, fmt.Errorf("tick rate must be positive, got %d", tickRate)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
		cfg.Seed = seed
	}

	wcfg := physics.DefaultConfig()
	wcfg.Gravity = cfg.Gravity
	world := physics.NewWorld(wcfg)

	e := &Engine{
		world:        world,
		anim:         NewAnimationTracker(nil),
		launcher:     NewBallLauncher(cfg.Launcher),
		tickRate:     tickRate,
		stopChan:     make(chan struct{}),
		snapshotPool: NewSnapshotPool(MaxRosterSize),
		eventLog:     NewEventLog(),
		rng:          rand.New(rand.NewSource(seed)),
		rngSeed:      seed,
	}

	m, err := NewMatch(cfg, world, WithAnimator(e.anim), WithEventSink(e.emit))
	if err != nil {
		return nil, err
	}
	e.match = m

	world.OnGround(func(id physics.EntityID, p vec.Vec3) {
		if id == m.ball.Entity {
			m.BallGrounded(p)
		}
	})

	m.Begin()
	e.ProduceSnapshot()
	return e, nil
}

// Start begins the game loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	e.ticker = time.NewTicker(time.Second / time.Duration(e.tickRate))

	go func() {
		for {
			select {
			case <-e.ticker.C:
				e.tick()
			case <-e.stopChan:
				return
			}
		}
	}()

	log.Printf("🏐 Match engine started at %d TPS (match %s)", e.tickRate, e.match.ID)
}

// Stop stops the game loop
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
	log.Println("🛑 Match engine stopped")
}

// tick is called at tickRate times per second
func (e *Engine) tick() {
	e.Advance(1.0 / float64(e.tickRate))
}

// Advance runs one simulation step of dt seconds. The headless simulator
// and tests call it directly instead of starting the ticker.
func (e *Engine) Advance(dt float64) {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickCount++

	// Log tick event with RNG seed for deterministic replay
	e.eventLog.EmitSimple(EventTypeTick, e.tickCount, "", TickPayload{
		RNGSeed:     e.rngSeed,
		AgentCount:  e.match.roster.Len(),
		DeltaTimeNs: int64(dt * 1e9),
		Clock:       e.match.clock,
	})
	e.rngSeed = e.rng.Int63()

	e.world.Step(dt)
	e.match.Step(dt)
	e.launcher.Step(e.match, dt)

	e.ProduceSnapshot()

	if e.onTick != nil {
		e.onTick(time.Since(start))
	}
}

// emit forwards match events to the log and the event hook
func (e *Engine) emit(t EventType, source string, payload interface{}) {
	ev := NewEvent(t, e.tickCount, source, payload)
	e.eventLog.Emit(ev)
	if e.onEvent != nil && t != EventTypeTick {
		e.onEvent(ev)
	}
}

// ProduceSnapshot publishes the current match state
// Called at the end of each tick with the lock held
func (e *Engine) ProduceSnapshot() {
	snap := e.snapshotPool.AcquireWrite()
	e.match.fillSnapshot(snap, e.anim)
	snap.TickNumber = e.tickCount
	snap.RNGSeed = e.rngSeed
	e.snapshotPool.PublishWrite()
}

// GetSnapshot returns the latest immutable snapshot
func (e *Engine) GetSnapshot() *MatchSnapshot {
	return e.snapshotPool.AcquireRead()
}

// StrikeBall launches the ball from outside the agents
func (e *Engine) StrikeBall(pos, vel vec.Vec3, byOperator bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.match.StrikeBall(pos, vel, byOperator)
}

// RequestServe starts a rally; an empty name uses the scheduled server
func (e *Engine) RequestServe(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name == "" {
		s := e.match.Server()
		if s == nil {
			return ErrNotServing
		}
		name = s.Name
	}
	return e.match.RequestServe(name)
}

// MoveOperator repositions the manual participant
func (e *Engine) MoveOperator(p vec.Vec3) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.match.MoveOperator(p)
}

// ResetRally abandons the current rally without scoring
func (e *Engine) ResetRally() {
	e.mu.Lock()
	defer e.mu.Unlock()
	serving := e.match.ball.possession.CurrentTeam()
	if s := e.match.Server(); s != nil {
		serving = s.Team
	}
	e.match.ResetRally(serving)
}

// Score returns both team scores when the built-in referee is in charge
func (e *Engine) Score() (red, blue int) {
	if ref := e.Referee(); ref != nil {
		return ref.Score()
	}
	return 0, 0
}

// Referee returns the built-in referee, or nil if a custom flow is installed
func (e *Engine) Referee() *Referee {
	ref, _ := e.match.flow.(*Referee)
	return ref
}

// WithMatch runs fn with exclusive access to the match
func (e *Engine) WithMatch(fn func(m *Match)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.match)
}

// Stats returns a copy of the match counters
func (e *Engine) Stats() MatchStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.match.stats
	out := MatchStats{
		Arbitrations:    make(map[ArbitrationOutcome]uint64, len(s.Arbitrations)),
		Touches:         make(map[possession.Outcome]uint64, len(s.Touches)),
		InvalidGeometry: s.InvalidGeometry,
		NoValidTarget:   s.NoValidTarget,
		LifecycleFaults: s.LifecycleFaults,
	}
	for k, v := range s.Arbitrations {
		out.Arbitrations[k] = v
	}
	for k, v := range s.Touches {
		out.Touches[k] = v
	}
	return out
}

// OnEvent sets the hook called for every non-tick event
func (e *Engine) OnEvent(fn func(Event)) {
	e.mu.Lock()
	e.onEvent = fn
	e.mu.Unlock()
}

// OnTick sets the hook called with each tick's duration
func (e *Engine) OnTick(fn func(time.Duration)) {
	e.mu.Lock()
	e.onTick = fn
	e.mu.Unlock()
}

// StartEventLog initializes the event logging system with a global rate of
// perSec events; zero keeps the default
func (e *Engine) StartEventLog(filePath string, perSec int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if perSec > 0 && perSec != MaxEventsPerSec {
		e.eventLog.Stop()
		e.eventLog = NewEventLogWithLimit(perSec)
	}
	return e.eventLog.Start(filePath)
}

// StopEventLog gracefully stops the event logging system
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns event log statistics for monitoring
func (e *Engine) GetEventLogStats() EventLogStats {
	return e.eventLog.Stats()
}

// TickRate returns the configured ticks per second
func (e *Engine) TickRate() int {
	return e.tickRate
}

// Court returns the court geometry. It never changes after construction.
func (e *Engine) Court() court.Geometry {
	return e.match.cfg.Court
}

// Scoreboard is the score with the latest points and top contributors
type Scoreboard struct {
	Red     int                 `json:"red"`
	Blue    int                 `json:"blue"`
	Rally   int                 `json:"rally"`
	Points  []PointRecord       `json:"points"`
	Leaders []ContributionEntry `json:"leaders"`
}

// Scoreboard reports the built-in referee's view, keeping the last limit points
func (e *Engine) Scoreboard(limit int) Scoreboard {
	e.mu.RLock()
	rally := e.match.rally
	e.mu.RUnlock()

	sb := Scoreboard{Rally: rally, Points: []PointRecord{}, Leaders: []ContributionEntry{}}
	ref := e.Referee()
	if ref == nil {
		return sb
	}
	sb.Red, sb.Blue = ref.Score()
	hist := ref.History()
	if limit > 0 && len(hist) > limit {
		hist = hist[len(hist)-limit:]
	}
	sb.Points = hist
	sb.Leaders = ref.TopContributors(limit)
	return sb
}
