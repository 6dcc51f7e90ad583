package effects

import (
	"time"

	"github.com/on-the-ground/fiber_ive_go/effects/cause"
)

// FiberInfo identifies a fiber to a Supervisor.
type FiberInfo struct {
	ID        cause.FiberID
	Parent    cause.FiberID
	Daemon    bool
	StartedAt time.Time
}

// Supervisor observes the lifecycle of every fiber of a Runtime.
// Calls are made from worker goroutines and must not block.
type Supervisor interface {
	OnStart(info FiberInfo)
	OnEnd(info FiberInfo, kind cause.Kind)
}

type noopSupervisor struct{}

func (noopSupervisor) OnStart(FiberInfo)             {}
func (noopSupervisor) OnEnd(FiberInfo, cause.Kind) {}

// NoopSupervisor ignores every event.
var NoopSupervisor Supervisor = noopSupervisor{}

type supervisors []Supervisor

func (s supervisors) OnStart(info FiberInfo) {
	for _, sv := range s {
		sv.OnStart(info)
	}
}

func (s supervisors) OnEnd(info FiberInfo, kind cause.Kind) {
	for _, sv := range s {
		sv.OnEnd(info, kind)
	}
}

// Supervisors fans events out to every non-nil supervisor, in order.
func Supervisors(svs ...Supervisor) Supervisor {
	out := make(supervisors, 0, len(svs))
	for _, sv := range svs {
		if sv != nil {
			out = append(out, sv)
		}
	}
	switch len(out) {
	case 0:
		return NoopSupervisor
	case 1:
		return out[0]
	default:
		return out
	}
}
