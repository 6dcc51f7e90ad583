package effects

import (
	"runtime"

	"go.uber.org/zap"
)

// DefaultMaxOpsBeforeYield is the number of instructions a fiber runs
// before it gives its worker back to other fibers.
const DefaultMaxOpsBeforeYield = 2048

// RuntimeConfig is passed to NewRuntime. Zero fields get defaults.
type RuntimeConfig struct {
	NumWorkers        int // default: GOMAXPROCS
	MaxOpsBeforeYield int // default: DefaultMaxOpsBeforeYield
	Logger            *zap.Logger
	Supervisor        Supervisor
}

// NewRuntimeConfig returns a normalized configuration with a no-op logger
// and supervisor.
func NewRuntimeConfig(numWorkers int, maxOpsBeforeYield int) RuntimeConfig {
	return RuntimeConfig{
		NumWorkers:        numWorkers,
		MaxOpsBeforeYield: maxOpsBeforeYield,
	}.normalize()
}

func (c RuntimeConfig) normalize() RuntimeConfig {
	if c.NumWorkers <= 0 {
		c.NumWorkers = runtime.GOMAXPROCS(0)
	}
	if c.MaxOpsBeforeYield <= 0 {
		c.MaxOpsBeforeYield = DefaultMaxOpsBeforeYield
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Supervisor == nil {
		c.Supervisor = NoopSupervisor
	}
	return c
}
