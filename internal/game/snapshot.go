package game

import (
	"sync/atomic"
	"time"

	"volley-club/internal/game/team"
	"volley-club/internal/game/vec"
)

// AgentSnapshot is an immutable copy of agent state for readers
// Uses value types (not pointers) to ensure immutability
type AgentSnapshot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Team      team.Team `json:"team"`
	Position  vec.Vec3  `json:"position"`
	Yaw       float64   `json:"yaw"`
	State     StateKind `json:"state"`
	MayCatch  bool      `json:"mayCatch"`
	Cooldown  float64   `json:"cooldown"`
	HasToken  bool      `json:"hasToken"`
	HasBall   bool      `json:"hasBall"`
	PassFrom  string    `json:"passFrom,omitempty"` // thrower of the ball in flight to this agent
	Animation string    `json:"animation,omitempty"`
}

// OperatorSnapshot is the manual participant
type OperatorSnapshot struct {
	Name     string    `json:"name"`
	Team     team.Team `json:"team"`
	Position vec.Vec3  `json:"position"`
}

// BallSnapshot is the ball and its prediction
type BallSnapshot struct {
	Position   vec.Vec3          `json:"position"`
	Velocity   vec.Vec3          `json:"velocity"`
	Holder     string            `json:"holder,omitempty"`
	Launches   int               `json:"launches"`
	Prediction LandingPrediction `json:"prediction"`
}

// PossessionSnapshot is the rule tracker state
type PossessionSnapshot struct {
	Team        team.Team `json:"team"`
	Count       int       `json:"count"`
	Max         int       `json:"max"`
	MustPass    bool      `json:"mustPass"`
	LastToucher string    `json:"lastToucher,omitempty"`
}

// MatchSnapshot is a complete immutable match state
// The agent slice is pre-allocated and capped
type MatchSnapshot struct {
	Sequence   uint64    `json:"sequence"`   // Monotonic sequence for ordering
	Timestamp  time.Time `json:"timestamp"`  // When snapshot was created
	TickNumber uint64    `json:"tickNumber"` // Simulation tick this represents
	RNGSeed    int64     `json:"rngSeed"`    // Seed for deterministic replay
	MatchID    string    `json:"matchId"`
	Clock      float64   `json:"clock"`

	Agents     []AgentSnapshot    `json:"agents"`
	Operator   *OperatorSnapshot  `json:"operator,omitempty"`
	Ball       BallSnapshot       `json:"ball"`
	Possession PossessionSnapshot `json:"possession"`

	Rally       int     `json:"rally"`
	RallyActive bool    `json:"rallyActive"`
	Server      string  `json:"server,omitempty"`
	ServeIn     float64 `json:"serveIn,omitempty"`
	Red         int     `json:"red"`
	Blue        int     `json:"blue"`
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure
// Uses triple buffering for lock-free producer/consumer
type SnapshotPool struct {
	snapshots [3]MatchSnapshot // Triple buffer
	writeIdx  uint32           // atomic - producer index
	readIdx   uint32           // atomic - consumer index
	sequence  uint64           // atomic - monotonic sequence
}

// NewSnapshotPool creates a pool sized for maxAgents
func NewSnapshotPool(maxAgents int) *SnapshotPool {
	pool := &SnapshotPool{}
	for i := 0; i < 3; i++ {
		pool.snapshots[i] = MatchSnapshot{
			Agents: make([]AgentSnapshot, 0, maxAgents),
		}
	}
	return pool
}

// AcquireWrite gets the next write slot (producer only, called from the tick)
// Returns a snapshot with reset slices but preserved capacity
func (p *SnapshotPool) AcquireWrite() *MatchSnapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	snap := &p.snapshots[idx]

	snap.Agents = snap.Agents[:0]
	snap.Operator = nil

	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now()

	return snap
}

// PublishWrite marks write complete and advances read pointer
// Called after snapshot is fully populated
func (p *SnapshotPool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
}

// AcquireRead gets the latest complete snapshot (consumer only)
func (p *SnapshotPool) AcquireRead() *MatchSnapshot {
	idx := atomic.LoadUint32(&p.readIdx) % 3
	return &p.snapshots[idx]
}

// Clone returns a deep copy safe to keep after the next tick
func (s *MatchSnapshot) Clone() MatchSnapshot {
	out := *s
	out.Agents = append([]AgentSnapshot(nil), s.Agents...)
	if s.Operator != nil {
		op := *s.Operator
		out.Operator = &op
	}
	return out
}

// fillSnapshot copies the match into snap
func (m *Match) fillSnapshot(snap *MatchSnapshot, anim *AnimationTracker) {
	snap.MatchID = m.ID
	snap.TickNumber = m.tick
	snap.Clock = m.clock

	holder := m.arbitrator.holder
	for _, a := range m.roster.Agents() {
		if len(snap.Agents) == cap(snap.Agents) {
			break
		}
		as := AgentSnapshot{
			ID:       a.ID,
			Name:     a.Name,
			Team:     a.Team,
			Position: a.Position,
			Yaw:      a.Yaw,
			State:    a.state.Kind,
			MayCatch: a.mayCatch,
			Cooldown: a.cooldown,
			HasToken: a == holder,
			HasBall:  a.ball != nil,
			PassFrom: a.lastThrower,
		}
		if anim != nil {
			as.Animation = anim.Last(a.ID)
		}
		snap.Agents = append(snap.Agents, as)
	}

	if op := m.roster.Operator(); op != nil {
		snap.Operator = &OperatorSnapshot{Name: op.Name, Team: op.Team, Position: op.Position}
	}

	snap.Ball = BallSnapshot{
		Position:   m.BallPosition(),
		Velocity:   m.BallVelocity(),
		Launches:   m.ball.Launches,
		Prediction: m.arbitrator.prediction,
	}
	if m.ball.holder != nil {
		snap.Ball.Holder = m.ball.holder.Name
	}

	p := m.ball.possession
	snap.Possession = PossessionSnapshot{
		Team:        p.CurrentTeam(),
		Count:       p.Count(),
		Max:         p.MaxTouches(),
		MustPass:    p.MustPassToOpponent(),
		LastToucher: p.LastToucher(),
	}

	snap.Rally = m.rally
	snap.RallyActive = m.rallyActive
	snap.Server = ""
	if m.server != nil {
		snap.Server = m.server.Name
	}
	snap.ServeIn = m.serveTimer
	if ref, ok := m.flow.(*Referee); ok {
		snap.Red, snap.Blue = ref.Score()
	}
}
