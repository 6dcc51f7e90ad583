// Package cause models how a computation terminated.
//
// A Cause is a closed algebra over failures: Empty, Fail (expected, typed
// failure), Die (defect), Interrupt (cancellation requested by a fiber),
// Then (sequential composition) and Both (parallel composition).
// Empty is the identity of Then and Both; both operators are associative and
// Both is commutative up to the order in which parallel failures are listed.
//
// An Exit is the terminal outcome of a fiber: either a success value or a
// Cause.
package cause

import (
	"fmt"
	"reflect"
	"strings"
)

// Cause is a sealed interface for the failure algebra.
// Only the types declared in this package implement it.
type Cause[E any] interface {
	// IsEmpty reports whether the cause carries no failure at all.
	IsEmpty() bool
	// Err flattens the cause into a Go error. Empty yields nil.
	Err() error
	String() string

	// sealedCause binds the implementation to its failure type, so a
	// Cause[string] is never a Cause[int].
	sealedCause(E)
}

// EmptyCause is the absence of failure.
type EmptyCause[E any] struct{}

// FailCause is an expected, typed failure.
type FailCause[E any] struct {
	Value E
}

// DieCause is an unexpected defect.
type DieCause[E any] struct {
	Defect error
}

// InterruptCause is a cancellation requested by the fiber By.
type InterruptCause[E any] struct {
	By FiberID
}

// ThenCause is a failure Right that happened after the failure Left.
type ThenCause[E any] struct {
	Left, Right Cause[E]
}

// BothCause is two failures that happened concurrently.
type BothCause[E any] struct {
	Left, Right Cause[E]
}

func (EmptyCause[E]) sealedCause(E)     {}
func (FailCause[E]) sealedCause(E)      {}
func (DieCause[E]) sealedCause(E)       {}
func (InterruptCause[E]) sealedCause(E) {}
func (ThenCause[E]) sealedCause(E)      {}
func (BothCause[E]) sealedCause(E)      {}

func (EmptyCause[E]) IsEmpty() bool     { return true }
func (FailCause[E]) IsEmpty() bool      { return false }
func (DieCause[E]) IsEmpty() bool       { return false }
func (InterruptCause[E]) IsEmpty() bool { return false }
func (c ThenCause[E]) IsEmpty() bool    { return c.Left.IsEmpty() && c.Right.IsEmpty() }
func (c BothCause[E]) IsEmpty() bool    { return c.Left.IsEmpty() && c.Right.IsEmpty() }

// Empty returns the identity cause.
func Empty[E any]() Cause[E] {
	return EmptyCause[E]{}
}

// Fail returns a cause holding the typed failure e.
func Fail[E any](e E) Cause[E] {
	return FailCause[E]{Value: e}
}

// Die returns a cause holding the defect err.
func Die[E any](err error) Cause[E] {
	if err == nil {
		err = ErrNilDefect
	}
	return DieCause[E]{Defect: err}
}

// Interrupt returns a cause recording an interruption requested by id.
func Interrupt[E any](id FiberID) Cause[E] {
	return InterruptCause[E]{By: id}
}

// Then composes two causes sequentially. Empty operands are dropped.
func Then[E any](left, right Cause[E]) Cause[E] {
	switch {
	case left == nil || left.IsEmpty():
		return orEmpty(right)
	case right == nil || right.IsEmpty():
		return left
	}
	return ThenCause[E]{Left: left, Right: right}
}

// Both composes two causes in parallel. Empty operands are dropped.
func Both[E any](left, right Cause[E]) Cause[E] {
	switch {
	case left == nil || left.IsEmpty():
		return orEmpty(right)
	case right == nil || right.IsEmpty():
		return left
	}
	return BothCause[E]{Left: left, Right: right}
}

func orEmpty[E any](c Cause[E]) Cause[E] {
	if c == nil {
		return EmptyCause[E]{}
	}
	return c
}

// Map transforms every typed failure of c with f, keeping the shape intact.
func Map[E, E2 any](c Cause[E], f func(E) E2) Cause[E2] {
	switch c := c.(type) {
	case nil, EmptyCause[E]:
		return EmptyCause[E2]{}
	case FailCause[E]:
		return FailCause[E2]{Value: f(c.Value)}
	case DieCause[E]:
		return DieCause[E2]{Defect: c.Defect}
	case InterruptCause[E]:
		return InterruptCause[E2]{By: c.By}
	case ThenCause[E]:
		return ThenCause[E2]{Left: Map(c.Left, f), Right: Map(c.Right, f)}
	case BothCause[E]:
		return BothCause[E2]{Left: Map(c.Left, f), Right: Map(c.Right, f)}
	default:
		panic(fmt.Errorf("exhaustive match: unknown cause type %T", c))
	}
}

// FlatMap replaces every typed failure of c with the cause returned by f.
func FlatMap[E, E2 any](c Cause[E], f func(E) Cause[E2]) Cause[E2] {
	switch c := c.(type) {
	case nil, EmptyCause[E]:
		return EmptyCause[E2]{}
	case FailCause[E]:
		return f(c.Value)
	case DieCause[E]:
		return DieCause[E2]{Defect: c.Defect}
	case InterruptCause[E]:
		return InterruptCause[E2]{By: c.By}
	case ThenCause[E]:
		return Then(FlatMap(c.Left, f), FlatMap(c.Right, f))
	case BothCause[E]:
		return Both(FlatMap(c.Left, f), FlatMap(c.Right, f))
	default:
		panic(fmt.Errorf("exhaustive match: unknown cause type %T", c))
	}
}

// Fold reduces c bottom-up.
func Fold[E, Z any](
	c Cause[E],
	onEmpty Z,
	onFail func(E) Z,
	onDie func(error) Z,
	onInterrupt func(FiberID) Z,
	onThen func(Z, Z) Z,
	onBoth func(Z, Z) Z,
) Z {
	var rec func(Cause[E]) Z
	rec = func(c Cause[E]) Z {
		switch c := c.(type) {
		case nil, EmptyCause[E]:
			return onEmpty
		case FailCause[E]:
			return onFail(c.Value)
		case DieCause[E]:
			return onDie(c.Defect)
		case InterruptCause[E]:
			return onInterrupt(c.By)
		case ThenCause[E]:
			return onThen(rec(c.Left), rec(c.Right))
		case BothCause[E]:
			return onBoth(rec(c.Left), rec(c.Right))
		default:
			panic(fmt.Errorf("exhaustive match: unknown cause type %T", c))
		}
	}
	return rec(c)
}

// Failures lists the typed failures of c, left to right.
func Failures[E any](c Cause[E]) []E {
	var out []E
	walk(c, func(leaf Cause[E]) {
		if f, ok := leaf.(FailCause[E]); ok {
			out = append(out, f.Value)
		}
	})
	return out
}

// Defects lists the defects of c, left to right.
func Defects[E any](c Cause[E]) []error {
	var out []error
	walk(c, func(leaf Cause[E]) {
		if d, ok := leaf.(DieCause[E]); ok {
			out = append(out, d.Defect)
		}
	})
	return out
}

// Interruptors lists the fibers that interrupted, left to right.
func Interruptors[E any](c Cause[E]) []FiberID {
	var out []FiberID
	walk(c, func(leaf Cause[E]) {
		if i, ok := leaf.(InterruptCause[E]); ok {
			out = append(out, i.By)
		}
	})
	return out
}

// FirstFailure returns the leftmost typed failure of c.
func FirstFailure[E any](c Cause[E]) (E, bool) {
	fs := Failures(c)
	if len(fs) == 0 {
		var zero E
		return zero, false
	}
	return fs[0], true
}

// Failed reports whether c contains a typed failure.
func Failed[E any](c Cause[E]) bool { return len(Failures(c)) > 0 }

// Died reports whether c contains a defect.
func Died[E any](c Cause[E]) bool { return len(Defects(c)) > 0 }

// Interrupted reports whether c contains an interruption.
func Interrupted[E any](c Cause[E]) bool { return len(Interruptors(c)) > 0 }

// InterruptedOnly reports whether c is non-empty and every leaf of c is an
// interruption.
func InterruptedOnly[E any](c Cause[E]) bool {
	only := true
	walk(c, func(leaf Cause[E]) {
		if _, ok := leaf.(InterruptCause[E]); !ok {
			only = false
		}
	})
	return only && !c.IsEmpty()
}

// StripInterrupts removes every interruption leaf from c.
func StripInterrupts[E any](c Cause[E]) Cause[E] {
	switch c := c.(type) {
	case nil:
		return EmptyCause[E]{}
	case InterruptCause[E]:
		return EmptyCause[E]{}
	case ThenCause[E]:
		return Then(StripInterrupts(c.Left), StripInterrupts(c.Right))
	case BothCause[E]:
		return Both(StripInterrupts(c.Left), StripInterrupts(c.Right))
	default:
		return c
	}
}

// walk visits every non-empty leaf of c, left to right.
func walk[E any](c Cause[E], visit func(Cause[E])) {
	switch c := c.(type) {
	case nil, EmptyCause[E]:
	case ThenCause[E]:
		walk(c.Left, visit)
		walk(c.Right, visit)
	case BothCause[E]:
		walk(c.Left, visit)
		walk(c.Right, visit)
	default:
		visit(c)
	}
}

// Equal compares two causes up to the algebra's laws: Empty is dropped,
// Then and Both are compared as flattened sequences, and the operands of Both
// are compared as a multiset.
func Equal[E any](a, b Cause[E]) bool {
	return normalize(a).equal(normalize(b))
}

type normKind uint8

const (
	normEmpty normKind = iota
	normLeaf
	normThen
	normBoth
)

type normCause struct {
	kind     normKind
	leaf     any
	children []normCause
}

func normalize[E any](c Cause[E]) normCause {
	switch c := c.(type) {
	case nil, EmptyCause[E]:
		return normCause{kind: normEmpty}
	case ThenCause[E]:
		return flatten(normThen, normalize(c.Left), normalize(c.Right))
	case BothCause[E]:
		return flatten(normBoth, normalize(c.Left), normalize(c.Right))
	default:
		return normCause{kind: normLeaf, leaf: c}
	}
}

func flatten(kind normKind, parts ...normCause) normCause {
	var children []normCause
	for _, p := range parts {
		switch {
		case p.kind == normEmpty:
		case p.kind == kind:
			children = append(children, p.children...)
		default:
			children = append(children, p)
		}
	}
	switch len(children) {
	case 0:
		return normCause{kind: normEmpty}
	case 1:
		return children[0]
	default:
		return normCause{kind: kind, children: children}
	}
}

func (n normCause) equal(o normCause) bool {
	if n.kind != o.kind || len(n.children) != len(o.children) {
		return false
	}
	switch n.kind {
	case normEmpty:
		return true
	case normLeaf:
		return reflect.DeepEqual(n.leaf, o.leaf)
	case normThen:
		for i := range n.children {
			if !n.children[i].equal(o.children[i]) {
				return false
			}
		}
		return true
	default:
		used := make([]bool, len(o.children))
	next:
		for _, c := range n.children {
			for j, d := range o.children {
				if !used[j] && c.equal(d) {
					used[j] = true
					continue next
				}
			}
			return false
		}
		return true
	}
}

func (EmptyCause[E]) String() string       { return "Empty" }
func (c FailCause[E]) String() string      { return fmt.Sprintf("Fail(%v)", c.Value) }
func (c DieCause[E]) String() string       { return fmt.Sprintf("Die(%v)", c.Defect) }
func (c InterruptCause[E]) String() string { return fmt.Sprintf("Interrupt(%v)", c.By) }
func (c ThenCause[E]) String() string      { return binaryString("Then", c.Left, c.Right) }
func (c BothCause[E]) String() string      { return binaryString("Both", c.Left, c.Right) }

func binaryString[E any](op string, l, r Cause[E]) string {
	var b strings.Builder
	b.WriteString(op)
	b.WriteByte('(')
	b.WriteString(l.String())
	b.WriteString(", ")
	b.WriteString(r.String())
	b.WriteByte(')')
	return b.String()
}
