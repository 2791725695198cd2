package game

import (
	"log"

	"github.com/paulmach/orb/planar"

	"volley-club/internal/game/ballistics"
	"volley-club/internal/game/court"
	"volley-club/internal/game/vec"
)

// LandingPrediction is where and when a ball is expected to come down.
// Origin is where the ball was launched from.
type LandingPrediction struct {
	Point  vec.Vec3 `json:"point"`
	Origin vec.Vec3 `json:"origin"`
	Height float64  `json:"height"`
	Valid  bool     `json:"valid"`
	At     float64  `json:"at"` // match clock at prediction time
}

// ArbitrationOutcome is the result of one assignment attempt
type ArbitrationOutcome uint8

const (
	OutcomeAssigned ArbitrationOutcome = iota
	OutcomeInvalidPrediction
	OutcomeStalePrediction
	OutcomeNoEligibleAgent
	OutcomeOutOfRange
)

func (o ArbitrationOutcome) String() string {
	switch o {
	case OutcomeAssigned:
		return "assigned"
	case OutcomeInvalidPrediction:
		return "invalid_prediction"
	case OutcomeStalePrediction:
		return "stale_prediction"
	case OutcomeNoEligibleAgent:
		return "no_eligible_agent"
	case OutcomeOutOfRange:
		return "out_of_range"
	default:
		return "unknown"
	}
}

// CatchArbitrator hands out the single right to chase a predicted landing
// point. Every change to an agent's mayCatch flag goes through it.
type CatchArbitrator struct {
	m          *Match
	holder     *Agent
	prediction LandingPrediction
}

func newCatchArbitrator(m *Match) *CatchArbitrator {
	return &CatchArbitrator{m: m}
}

// Holder returns the agent holding the token, or nil
func (c *CatchArbitrator) Holder() *Agent { return c.holder }

// Prediction returns the latest landing prediction
func (c *CatchArbitrator) Prediction() LandingPrediction { return c.prediction }

// Predict runs the forward solve at height h, retrying at the fallback ground
// height. A prediction that fails both is marked invalid and sits at start.
func (c *CatchArbitrator) Predict(start, velocity vec.Vec3, h float64) LandingPrediction {
	ground := c.m.cfg.Ball.FallbackGroundHeight
	p, ok := ballistics.PredictWithFallback(start, velocity, c.m.physics.GravityMagnitude(), h, ground)
	if ok {
		h = p.Y
	} else {
		h = ground
	}
	return LandingPrediction{Point: p, Origin: start, Height: h, Valid: ok, At: c.m.clock}
}

// OnExternalStrike drops the current chaser, predicts at the roster's
// average catch height and assigns the closest eligible agent.
func (c *CatchArbitrator) OnExternalStrike(start, velocity vec.Vec3) (*Agent, ArbitrationOutcome) {
	if h := c.holder; h != nil {
		c.m.transition(h, State{Kind: StateIdle})
	}
	h := c.m.roster.AverageCatchHeight(c.m.cfg.Agent.CatchHeight)
	return c.AssignClosestEligibleAgent(c.Predict(start, velocity, h))
}

// AssignClosestEligibleAgent gives the token to the planar-nearest agent that
// may catch, may stand at the point, and is not turning down an
// out-of-bounds ball from the other side. Every failure means nobody chases.
func (c *CatchArbitrator) AssignClosestEligibleAgent(pred LandingPrediction) (*Agent, ArbitrationOutcome) {
	m := c.m
	c.prediction = pred

	outcome := c.assign(pred)
	m.stats.Arbitrations[outcome]++
	if outcome != OutcomeAssigned {
		m.emit(EventTypeConcede, "", ConcedePayload{Reason: outcome.String(), Landing: pred.Point})
		log.Printf("🙅 No chaser for (%.1f, %.1f): %s", pred.Point.X, pred.Point.Z, outcome)
		return nil, outcome
	}
	return c.holder, outcome
}

func (c *CatchArbitrator) assign(pred LandingPrediction) ArbitrationOutcome {
	m := c.m
	if !pred.Valid {
		return OutcomeInvalidPrediction
	}
	if c.stale(pred) {
		return OutcomeStalePrediction
	}

	target := court.Point(pred.Point)
	var best *Agent
	bestDist := 0.0
	for _, a := range m.roster.Agents() {
		if !c.eligible(a, pred) {
			continue
		}
		d := planar.Distance(court.Point(a.Position), target)
		if best == nil || d < bestDist {
			best, bestDist = a, d
		}
	}

	if best == nil {
		return OutcomeNoEligibleAgent
	}
	if bestDist > m.cfg.Arbitration.ChaseRadius {
		return OutcomeOutOfRange
	}

	if h := c.holder; h != nil && h != best {
		m.transition(h, State{Kind: StateIdle})
	}
	m.transition(best, State{Kind: StateMovingToTarget, Target: pred.Point})
	c.holder = best

	m.emit(EventTypeAssign, best.ID, AssignPayload{
		AgentID:  best.ID,
		Name:     best.Name,
		Landing:  pred.Point,
		Distance: bestDist,
	})
	log.Printf("🏃 %s chases (%.1f, %.1f), %.1fm away", best.Name, pred.Point.X, pred.Point.Z, bestDist)
	return OutcomeAssigned
}

func (c *CatchArbitrator) eligible(a *Agent, pred LandingPrediction) bool {
	m := c.m
	if !a.mayCatch || a.ball != nil || a.state.Kind.holdsBall() {
		return false
	}
	if !m.validator.CanOccupy(a.Team, pred.Point) {
		return false
	}
	if m.cfg.Arbitration.ChaseOutOfBoundsFromOpponent {
		return true
	}
	fromOpponent := m.validator.SideOf(pred.Origin) != a.Team
	return !(fromOpponent && !m.validator.InBounds(pred.Point))
}

func (c *CatchArbitrator) stale(pred LandingPrediction) bool {
	return c.m.clock-pred.At > c.m.cfg.Ball.PredictionValidity
}

// release clears the token if a holds it
func (c *CatchArbitrator) release(a *Agent) {
	if c.holder == a {
		c.holder = nil
	}
}

// clear drops the token and the prediction
func (c *CatchArbitrator) clear() {
	c.holder = nil
	c.prediction = LandingPrediction{}
}

// HandOff restricts catching to the recipient of a throw, then lets the
// recipient adjust toward where the ball will cross its catch height.
func (c *CatchArbitrator) HandOff(thrower *Agent, to Candidate, start, velocity vec.Vec3) {
	for _, a := range c.m.roster.Agents() {
		a.mayCatch = false
		a.lastThrower = ""
	}
	if op := c.m.roster.Operator(); op != nil {
		op.mayCatch = to.Operator == op
	}
	if to.Agent != nil {
		to.Agent.mayCatch = true
		to.Agent.lastThrower = thrower.ID
		if to.Agent.cooldown < c.m.cfg.Agent.RecipientCooldown {
			to.Agent.cooldown = c.m.cfg.Agent.RecipientCooldown
		}
	}
	c.AssignClosestEligibleAgent(c.Predict(start, velocity, to.CatchPoint.Y))
}

// RestoreCatching lets everyone catch again (new rally or external strike)
func (c *CatchArbitrator) RestoreCatching() {
	for _, a := range c.m.roster.Agents() {
		a.mayCatch = true
		a.lastThrower = ""
	}
	if op := c.m.roster.Operator(); op != nil {
		op.mayCatch = true
	}
}

// checkHolder degrades a token pointing outside the roster
func (c *CatchArbitrator) checkHolder() {
	if c.holder != nil && !c.m.roster.Contains(c.holder) {
		name := c.holder.Name
		c.holder = nil
		c.m.lifecycleFault(nil, "arbitration token held by %s, who left the roster", name)
	}
}
