package timeseries

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoObservations     = errors.New("no observations")
	ErrNoEntity           = errors.New("no entity key")
	ErrNonMonotonic       = errors.New("time column is not monotonic")
	ErrSeriesLenMismatch  = errors.New("time column has a different length than observations")
	ErrCovariateMismatch  = errors.New("covariate length differs from observations")
	ErrDuplicateCovariate = errors.New("covariate already registered")
	ErrDuplicateEntity    = errors.New("entity already present in collection")
	ErrUnknownEntity      = errors.New("entity not present in collection")
)

// Series holds the observations of a single entity along with any covariates
// aligned to the same timesteps. All per-timestep columns must have the same
// length as Y and describe the same index.
type Series struct {
	Entity string
	T      []time.Time
	Y      []float64

	NumCovariates    map[string][]float64
	CatCovariates    map[string][]string
	StaticCovariates map[string]string
}

// NewSeries returns a Series for one entity given a time and value column.
func NewSeries(entity string, t []time.Time, y []float64) (*Series, error) {
	if entity == "" {
		return nil, ErrNoEntity
	}
	if len(y) == 0 {
		return nil, fmt.Errorf("entity %q, %w", entity, ErrNoObservations)
	}
	if len(t) != len(y) {
		return nil, fmt.Errorf(
			"entity %q time column has length of %d, but values has a length of %d, %w",
			entity, len(t), len(y), ErrSeriesLenMismatch,
		)
	}

	var lastT time.Time
	for i := 0; i < len(t); i++ {
		currT := t[i]
		if currT.Before(lastT) || currT.Equal(lastT) {
			return nil, fmt.Errorf("entity %q non-monotonic at %d, %w", entity, i, ErrNonMonotonic)
		}
		lastT = currT
	}

	tCol := make([]time.Time, len(t))
	yCol := make([]float64, len(y))
	copy(tCol, t)
	copy(yCol, y)
	return &Series{
		Entity:           entity,
		T:                tCol,
		Y:                yCol,
		NumCovariates:    make(map[string][]float64),
		CatCovariates:    make(map[string][]string),
		StaticCovariates: make(map[string]string),
	}, nil
}

// AddNumCovariate registers a dynamic numerical covariate aligned with Y.
func (s *Series) AddNumCovariate(name string, vals []float64) error {
	if _, exists := s.NumCovariates[name]; exists {
		return fmt.Errorf("%s, %w", name, ErrDuplicateCovariate)
	}
	if _, exists := s.CatCovariates[name]; exists {
		return fmt.Errorf("%s, %w", name, ErrDuplicateCovariate)
	}
	if len(vals) != len(s.Y) {
		return fmt.Errorf(
			"entity %q covariate %q has length of %d, but values has a length of %d, %w",
			s.Entity, name, len(vals), len(s.Y), ErrCovariateMismatch,
		)
	}
	col := make([]float64, len(vals))
	copy(col, vals)
	s.NumCovariates[name] = col
	return nil
}

// AddCatCovariate registers a dynamic categorical covariate aligned with Y.
func (s *Series) AddCatCovariate(name string, vals []string) error {
	if _, exists := s.CatCovariates[name]; exists {
		return fmt.Errorf("%s, %w", name, ErrDuplicateCovariate)
	}
	if _, exists := s.NumCovariates[name]; exists {
		return fmt.Errorf("%s, %w", name, ErrDuplicateCovariate)
	}
	if len(vals) != len(s.Y) {
		return fmt.Errorf(
			"entity %q covariate %q has length of %d, but values has a length of %d, %w",
			s.Entity, name, len(vals), len(s.Y), ErrCovariateMismatch,
		)
	}
	col := make([]string, len(vals))
	copy(col, vals)
	s.CatCovariates[name] = col
	return nil
}

// SetStaticCovariate registers a per-entity categorical field, e.g. country.
func (s *Series) SetStaticCovariate(name, val string) {
	s.StaticCovariates[name] = val
}

// Len returns the number of observations.
func (s *Series) Len() int {
	return len(s.Y)
}

// Validate checks that every per-timestep column is aligned with Y. It
// returns the name of the first misaligned column wrapped in
// ErrCovariateMismatch.
func (s *Series) Validate() error {
	if len(s.T) != len(s.Y) {
		return fmt.Errorf("entity %q, %w", s.Entity, ErrSeriesLenMismatch)
	}
	for name, vals := range s.NumCovariates {
		if len(vals) != len(s.Y) {
			return fmt.Errorf(
				"entity %q covariate %q has length of %d, but values has a length of %d, %w",
				s.Entity, name, len(vals), len(s.Y), ErrCovariateMismatch,
			)
		}
	}
	for name, vals := range s.CatCovariates {
		if len(vals) != len(s.Y) {
			return fmt.Errorf(
				"entity %q covariate %q has length of %d, but values has a length of %d, %w",
				s.Entity, name, len(vals), len(s.Y), ErrCovariateMismatch,
			)
		}
	}
	return nil
}

// Collection is an ordered set of per-entity series. Iteration order is the
// order entities were first added which keeps downstream windowing
// deterministic.
type Collection struct {
	order  []string
	series map[string]*Series
}

func NewCollection() *Collection {
	return &Collection{
		series: make(map[string]*Series),
	}
}

// Add appends a series to the collection, rejecting duplicate entities.
func (c *Collection) Add(s *Series) error {
	if _, exists := c.series[s.Entity]; exists {
		return fmt.Errorf("%s, %w", s.Entity, ErrDuplicateEntity)
	}
	c.order = append(c.order, s.Entity)
	c.series[s.Entity] = s
	return nil
}

// Get returns the series for an entity.
func (c *Collection) Get(entity string) (*Series, error) {
	s, exists := c.series[entity]
	if !exists {
		return nil, fmt.Errorf("%s, %w", entity, ErrUnknownEntity)
	}
	return s, nil
}

// Entities returns entity keys in first-appearance order.
func (c *Collection) Entities() []string {
	keys := make([]string, len(c.order))
	copy(keys, c.order)
	return keys
}

// Len returns the number of entities.
func (c *Collection) Len() int {
	return len(c.order)
}
