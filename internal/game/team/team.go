// Package team defines the two sides of the court
package team

import "fmt"

// Team identifies one of the two symmetric sides
type Team uint8

const (
	Red  Team = iota // defends the x < 0 half
	Blue             // defends the x > 0 half
)

// All lists both teams in a stable order
var All = [2]Team{Red, Blue}

// Opponent returns the other team
func (t Team) Opponent() Team {
	if t == Red {
		return Blue
	}
	return Red
}

// Sign is -1 for the team on the negative half, +1 otherwise
func (t Team) Sign() float64 {
	if t == Red {
		return -1
	}
	return 1
}

// String returns the lowercase team name
func (t Team) String() string {
	switch t {
	case Red:
		return "red"
	case Blue:
		return "blue"
	default:
		return "unknown"
	}
}

// Parse converts a team name into a Team
func Parse(s string) (Team, error) {
	switch s {
	case "red", "Red", "RED":
		return Red, nil
	case "blue", "Blue", "BLUE":
		return Blue, nil
	}
	return Red, fmt.Errorf("unknown team %q", s)
}

// MarshalText encodes the team as its name
func (t Team) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a team name
func (t *Team) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// OwnsSide reports whether x lies on this team's half of the net line
func (t Team) OwnsSide(x float64) bool {
	if t == Red {
		return x < 0
	}
	return x > 0
}
