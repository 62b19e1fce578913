package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Setting is the run configuration of a tale.
type Setting struct {
	Seed int64 `yaml:"seed"`

	ActorCount      int `yaml:"actor_count"`
	Days            int `yaml:"days"`
	CoursesPerDay   int `yaml:"courses_per_day"`
	WorkdaysPerWeek int `yaml:"workdays_per_week"`
	ActorsPerCourse int `yaml:"actors_per_course"`

	FreetimeActorCount           int `yaml:"freetime_actor_count"`
	MinStartRelationships        int `yaml:"min_start_relationships"`
	MaxStartRelationships        int `yaml:"max_start_relationships"`
	DesiredMaxStartRelationships int `yaml:"desired_max_start_relationships"`

	FirstNames []string `yaml:"first_names"`
	LastNames  []string `yaml:"last_names"`
}

const DaysPerWeek = 7

// Defaults returns a small but complete setting.
func Defaults() Setting {
	var s Setting
	s.applyDefaults()
	return s
}

func (s *Setting) applyDefaults() {
	if s.ActorCount <= 0 {
		s.ActorCount = 40
	}
	if s.Days <= 0 {
		s.Days = 14
	}
	if s.CoursesPerDay <= 0 {
		s.CoursesPerDay = 4
	}
	if s.WorkdaysPerWeek <= 0 {
		s.WorkdaysPerWeek = 5
	}
	if s.ActorsPerCourse <= 0 {
		s.ActorsPerCourse = 10
	}
	if s.FreetimeActorCount <= 0 {
		s.FreetimeActorCount = 5
	}
	if s.MaxStartRelationships <= 0 {
		s.MaxStartRelationships = 5
	}
	if s.MinStartRelationships <= 0 {
		s.MinStartRelationships = 1
	}
	if s.DesiredMaxStartRelationships <= 0 {
		s.DesiredMaxStartRelationships = s.MaxStartRelationships
	}
	if len(s.FirstNames) == 0 {
		s.FirstNames = []string{"Ada", "Ben", "Cleo", "Dara", "Emil", "Fay", "Gus", "Hana", "Ivo", "Jule", "Kai", "Lena", "Milo", "Nora", "Otis", "Pia"}
	}
	if len(s.LastNames) == 0 {
		s.LastNames = []string{"Adler", "Brandt", "Castell", "Dorn", "Eckert", "Falk", "Graf", "Hesse", "Imhof", "Jung", "Krause", "Lang"}
	}
}

// Validate rejects settings no run can satisfy.
func (s Setting) Validate() error {
	switch {
	case s.WorkdaysPerWeek > DaysPerWeek:
		return fmt.Errorf("workdays_per_week %d exceeds %d", s.WorkdaysPerWeek, DaysPerWeek)
	case s.MinStartRelationships > s.MaxStartRelationships:
		return fmt.Errorf("min_start_relationships %d exceeds max_start_relationships %d", s.MinStartRelationships, s.MaxStartRelationships)
	case s.ActorCount < 2:
		return fmt.Errorf("actor_count %d: need at least 2 actors", s.ActorCount)
	}
	return nil
}

// SlotsPerWeek is the number of course ticks in a week.
func (s Setting) SlotsPerWeek() int { return s.WorkdaysPerWeek * s.CoursesPerDay }

// TicksPerDay is the same on every day: workdays end with one free-time tick,
// other days are free time throughout.
func (s Setting) TicksPerDay() int { return s.CoursesPerDay + 1 }

// Load reads a YAML setting, fills unset fields with defaults and validates.
func Load(path string) (Setting, error) {
	var s Setting
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("tuning.yaml: %w", err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("tuning.yaml: %w", err)
	}
	return s, nil
}
