// Package config holds the operator-tunable parameters and the process settings.
package config

import (
	"errors"
	"fmt"

	"nyiyui.ca/hato/dcatc/mathx"
)

var (
	// ErrRange is returned when a value is outside its field's range.
	ErrRange = errors.New("value out of range")
	// ErrOrder is returned when an edit would break DCMin < DCMax.
	ErrOrder = errors.New("dc-min must be below dc-max")
)

// Config is the set of tunables edited from the encoder.
type Config struct {
	DCMin        int `json:"dc-min" yaml:"dc-min"`
	DCMax        int `json:"dc-max" yaml:"dc-max"`
	RampStep     int `json:"ramp-step" yaml:"ramp-step"`
	DelaySeconds int `json:"delay-seconds" yaml:"delay-seconds"`
}

func Default() Config {
	return Config{
		DCMin:        20,
		DCMax:        80,
		RampStep:     5,
		DelaySeconds: 3,
	}
}

func (c Config) Validate() error {
	for _, f := range Fields {
		if err := f.check(c.Field(f)); err != nil {
			return err
		}
	}
	if c.DCMin >= c.DCMax {
		return fmt.Errorf("%d >= %d: %w", c.DCMin, c.DCMax, ErrOrder)
	}
	return nil
}

// Field is one editable tunable.
type Field int

const (
	FieldDCMin Field = iota
	FieldRampStep
	FieldDCMax
	FieldDelay
)

var Fields = [...]Field{FieldDCMin, FieldRampStep, FieldDCMax, FieldDelay}

func (f Field) String() string {
	switch f {
	case FieldDCMin:
		return "dc-min"
	case FieldRampStep:
		return "ramp-step"
	case FieldDCMax:
		return "dc-max"
	case FieldDelay:
		return "delay-seconds"
	default:
		return fmt.Sprintf("Field(%d)", int(f))
	}
}

// Range returns the inclusive bounds of f.
func (f Field) Range() (lo, hi int) {
	switch f {
	case FieldDCMin:
		return 0, 99
	case FieldRampStep:
		return 1, 100
	case FieldDCMax:
		return 1, 100
	case FieldDelay:
		return 0, 99
	default:
		panic(fmt.Sprintf("unknown field %d", f))
	}
}

func (f Field) check(v int) error {
	lo, hi := f.Range()
	if !mathx.Between(v, lo, hi) {
		return fmt.Errorf("%s %d (%d..%d): %w", f, v, lo, hi, ErrRange)
	}
	return nil
}

func (c Config) Field(f Field) int {
	switch f {
	case FieldDCMin:
		return c.DCMin
	case FieldRampStep:
		return c.RampStep
	case FieldDCMax:
		return c.DCMax
	case FieldDelay:
		return c.DelaySeconds
	default:
		panic(fmt.Sprintf("unknown field %d", f))
	}
}

func (c *Config) setField(f Field, v int) {
	switch f {
	case FieldDCMin:
		c.DCMin = v
	case FieldRampStep:
		c.RampStep = v
	case FieldDCMax:
		c.DCMax = v
	case FieldDelay:
		c.DelaySeconds = v
	default:
		panic(fmt.Sprintf("unknown field %d", f))
	}
}

// Persister saves a committed Config. Save must not block the caller for long.
type Persister interface {
	Save(c Config)
}

// Store is the single owner of the live Config.
// It is not safe for concurrent use; the control loop owns it.
type Store struct {
	cur Config
	p   Persister
}

// NewStore returns a Store starting at c. p may be nil.
func NewStore(c Config, p Persister) (*Store, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("initial config: %w", err)
	}
	return &Store{cur: c, p: p}, nil
}

func (s *Store) Get() Config { return s.cur }

// Set changes one field. A rejected value leaves the Store untouched.
func (s *Store) Set(f Field, v int) error {
	if err := f.check(v); err != nil {
		return err
	}
	next := s.cur
	next.setField(f, v)
	if next.DCMin >= next.DCMax {
		return fmt.Errorf("%s %d: %w", f, v, ErrOrder)
	}
	s.cur = next
	return nil
}

// Commit hands the current Config to the Persister.
func (s *Store) Commit() {
	if s.p != nil {
		s.p.Save(s.cur)
	}
}
