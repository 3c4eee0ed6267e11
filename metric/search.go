package metric

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ErrMeterNotFound is returned when no registered meter satisfies a Search.
var ErrMeterNotFound = errors.New("meter not found")

// Search looks up registered meters by name and required tags.
// Meters may carry tags other than the required ones.
type Search struct {
	registry *Registry
	name     string
	tags     []Tag
}

// Get starts a search for meters with given name.
func (r *Registry) Get(name string) *Search {
	return &Search{registry: r, name: name}
}

// Tag requires the meter to have given tag.
func (s *Search) Tag(key, value string) *Search {
	return s.Tags(NewTag(key, value))
}

// Tags requires the meter to have all given tags.
func (s *Search) Tags(tags ...Tag) *Search {
	next := *s
	next.tags = append(append([]Tag{}, s.tags...), tags...)
	return &next
}

// Meters returns all meters of any kind matching the search.
func (s *Search) Meters() []Meter {
	return lo.Filter(s.registry.Meters(), func(m Meter, _ int) bool {
		return m.ID().Name == s.name && m.ID().Tags.Contains(s.tags)
	})
}

// Timer returns the first timer matching the search.
func (s *Search) Timer() (*Timer, error) {
	m, err := s.first(TimerKind)
	if err != nil {
		return nil, err
	}
	return m.(*Timer), nil
}

// LongTaskTimer returns the first long task timer matching the search.
func (s *Search) LongTaskTimer() (*LongTaskTimer, error) {
	m, err := s.first(LongTaskTimerKind)
	if err != nil {
		return nil, err
	}
	return m.(*LongTaskTimer), nil
}

func (s *Search) first(kind Kind) (Meter, error) {
	for _, m := range s.Meters() {
		if m.ID().Kind == kind {
			return m, nil
		}
	}
	sameName := lo.Filter(s.registry.Meters(), func(m Meter, _ int) bool {
		return m.ID().Name == s.name
	})
	found := lo.Map(sameName, func(m Meter, _ int) string {
		return m.ID().Kind.String() + " " + m.ID().String()
	})
	return nil, errors.Wrapf(ErrMeterNotFound, "no %s named %s with tags %s (found %v)", kind, s.name, newTags(s.tags), found)
}
