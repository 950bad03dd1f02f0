// Package fixture loads YAML seed files into store changesets.
//
// A seed lists employees, projects and phases. Phases name their members by
// email and their projects by title; Changeset wires the back-references the
// store expects.
package fixture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/okian/allot/internal/domain/model"
)

// ErrInvalid marks a seed that references unknown or duplicate records.
var ErrInvalid = errors.New("invalid fixture")

// Seed is the decoded fixture file.
type Seed struct {
	Employees []model.Employee `yaml:"employees"`
	Projects  []model.Project  `yaml:"projects"`
	Phases    []Phase          `yaml:"phases"`
}

// Phase describes a phase by reference.
type Phase struct {
	ID           string    `yaml:"id"`
	Title        string    `yaml:"title"`
	Organisation string    `yaml:"organisation"`
	StartDate    time.Time `yaml:"start_date"`
	EndDate      time.Time `yaml:"end_date"`
	Threshold    int       `yaml:"threshold"`
	Active       bool      `yaml:"active"`
	Employees    []string  `yaml:"employees"`
	Projects     []string  `yaml:"projects"`
}

// Load reads and validates a fixture file.
func Load(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a fixture. Unknown keys are rejected.
func Parse(r io.Reader) (*Seed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Seed
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks keys are unique and every phase reference resolves.
func (s *Seed) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	emails := make(map[string]struct{}, len(s.Employees))
	for _, e := range s.Employees {
		if strings.TrimSpace(e.Email) == "" {
			add("employee without email")
			continue
		}
		if _, dup := emails[e.Email]; dup {
			add("employee %s listed twice", e.Email)
		}
		emails[e.Email] = struct{}{}
	}

	titles := make(map[string]struct{}, len(s.Projects))
	for _, p := range s.Projects {
		if strings.TrimSpace(p.Title) == "" {
			add("project without title")
			continue
		}
		if _, dup := titles[p.Title]; dup {
			add("project %s listed twice", p.Title)
		}
		if p.Capacity < 0 {
			add("project %s has negative capacity", p.Title)
		}
		titles[p.Title] = struct{}{}
	}

	phaseTitles := make(map[string]struct{}, len(s.Phases))
	for _, ph := range s.Phases {
		if strings.TrimSpace(ph.Title) == "" {
			add("phase without title")
			continue
		}
		if _, dup := phaseTitles[ph.Title]; dup {
			add("phase %s listed twice", ph.Title)
		}
		phaseTitles[ph.Title] = struct{}{}
		if ph.Threshold < 1 {
			add("phase %s threshold must be at least 1", ph.Title)
		}
		if !ph.EndDate.IsZero() && ph.EndDate.Before(ph.StartDate) {
			add("phase %s ends before it starts", ph.Title)
		}
		for _, email := range ph.Employees {
			if _, ok := emails[email]; !ok {
				add("phase %s references unknown employee %s", ph.Title, email)
			}
		}
		for _, title := range ph.Projects {
			if _, ok := titles[title]; !ok {
				add("phase %s references unknown project %s", ph.Title, title)
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Changeset converts the seed into store records. Phases without an ID get a
// fresh one; members point at their phase and projects follow its active
// flag. When an employee or project is listed by several phases the last one
// wins. References Validate would reject are skipped.
func (s *Seed) Changeset() model.Changeset {
	var cs model.Changeset

	employees := make(map[string]*model.Employee, len(s.Employees))
	for i := range s.Employees {
		cs.Employees = append(cs.Employees, s.Employees[i].Clone())
	}
	for i := range cs.Employees {
		employees[cs.Employees[i].Email] = &cs.Employees[i]
	}
	projects := make(map[string]*model.Project, len(s.Projects))
	for i := range s.Projects {
		cs.Projects = append(cs.Projects, s.Projects[i].Clone())
	}
	for i := range cs.Projects {
		projects[cs.Projects[i].Title] = &cs.Projects[i]
	}

	for _, def := range s.Phases {
		ph := model.Phase{
			ID:           def.ID,
			Title:        def.Title,
			Organisation: def.Organisation,
			StartAt:      def.StartDate,
			EndAt:        def.EndDate,
			EmployeeCap:  def.Threshold,
			Active:       def.Active,
			Projects:     append([]string(nil), def.Projects...),
		}
		if ph.ID == "" {
			ph.ID = uuid.NewString()
		}
		if ph.EndAt.IsZero() && !ph.StartAt.IsZero() {
			ph.EndAt = ph.StartAt.Add(7 * 24 * time.Hour)
		}
		for _, email := range def.Employees {
			e, ok := employees[email]
			if !ok {
				continue
			}
			ph.Employees = append(ph.Employees, model.Member{Name: e.Name, Email: email})
			e.CurrentPhase = ph.ID
		}
		for _, title := range def.Projects {
			p, ok := projects[title]
			if !ok {
				continue
			}
			p.PhaseID = ph.ID
			p.Active = ph.Active
		}
		cs.Phases = append(cs.Phases, ph)
	}
	return cs
}

// PhaseID returns the ID of the phase titled title in cs.
func PhaseID(cs model.Changeset, title string) (string, bool) {
	for _, ph := range cs.Phases {
		if ph.Title == title {
			return ph.ID, true
		}
	}
	return "", false
}
