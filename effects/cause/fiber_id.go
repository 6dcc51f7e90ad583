package cause

import (
	"cmp"
	"fmt"

	"github.com/google/uuid"
)

// FiberID identifies a fiber. Seq orders fibers of one runtime by creation;
// UUID keeps the identity unique across runtimes.
type FiberID struct {
	Seq  uint64
	UUID uuid.UUID
}

// NoFiber is the identity used for requests that do not come from a fiber,
// such as an interruption triggered by a cancelled context.
var NoFiber = FiberID{}

// NewFiberID returns an identity with the given sequence number.
func NewFiberID(seq uint64) FiberID {
	return FiberID{Seq: seq, UUID: uuid.New()}
}

// IsNone reports whether id is NoFiber.
func (id FiberID) IsNone() bool { return id == NoFiber }

// Compare orders ids by sequence number, then by UUID.
func (id FiberID) Compare(other FiberID) int {
	if c := cmp.Compare(id.Seq, other.Seq); c != 0 {
		return c
	}
	for i := range id.UUID {
		if c := cmp.Compare(id.UUID[i], other.UUID[i]); c != 0 {
			return c
		}
	}
	return 0
}

func (id FiberID) String() string {
	if id.IsNone() {
		return "#none"
	}
	return fmt.Sprintf("#%d", id.Seq)
}
