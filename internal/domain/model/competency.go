package model

import (
	"fmt"
	"strings"
)

// Competency is an ordinal skill level. The zero value is an unknown level,
// which ranks below Beginner.
type Competency int

const (
	CompetencyUnknown Competency = iota
	Beginner
	Intermediate
	Advanced
)

var competencyNames = [...]string{"Unknown", "Beginner", "Intermediate", "Advanced"}

func (c Competency) String() string {
	if c < CompetencyUnknown || c > Advanced {
		return fmt.Sprintf("Competency(%d)", int(c))
	}
	return competencyNames[c]
}

// Satisfies reports whether a holder at level c meets a requirement at level required.
func (c Competency) Satisfies(required Competency) bool {
	return c >= required
}

// ParseCompetency parses a level name case-insensitively. An empty name is
// the unknown level.
func ParseCompetency(s string) (Competency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown":
		return CompetencyUnknown, nil
	case "beginner":
		return Beginner, nil
	case "intermediate":
		return Intermediate, nil
	case "advanced":
		return Advanced, nil
	}
	return CompetencyUnknown, fmt.Errorf("unknown competency %q", s)
}

// MarshalText encodes the level by name.
func (c Competency) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a level name.
func (c *Competency) UnmarshalText(b []byte) error {
	v, err := ParseCompetency(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Skill pairs a skill name with a competency level. For a project the level is
// the requirement; for an employee it is the level they hold.
type Skill struct {
	Name       string     `json:"skill" yaml:"skill" msgpack:"n"`
	Competency Competency `json:"competency" yaml:"competency" msgpack:"c"`
}
