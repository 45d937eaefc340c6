package multilevel

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidResolution      = errors.New("resolution must be a non-negative number")
	ErrInvalidResolutionOrder = errors.New("invalid resolution order")
	ErrLevelOutOfRange        = errors.New("level out of range")
)

// InvalidResolutionOrderError is returned by AddLevel when the resolution is
// not lower than the resolution of the current top level.
type InvalidResolutionOrderError struct {
	Resolution         float64
	PreviousResolution float64
}

func (e *InvalidResolutionOrderError) Error() string {
	return fmt.Sprintf("resolution %g must be lower than %g at the highest (least granular) level", e.Resolution, e.PreviousResolution)
}

func (e *InvalidResolutionOrderError) Unwrap() error { return ErrInvalidResolutionOrder }

// LevelOutOfRangeError is returned when a level index is not valid
type LevelOutOfRangeError struct {
	Level   int
	NLevels int
}

func (e *LevelOutOfRangeError) Error() string {
	return fmt.Sprintf("level %d out of range [0, %d)", e.Level, e.NLevels)
}

func (e *LevelOutOfRangeError) Unwrap() error { return ErrLevelOutOfRange }
