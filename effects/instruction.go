package effects

import (
	"github.com/on-the-ground/fiber_ive_go/effects/cause"
)

// instruction is the closed set of description nodes the interpreter
// understands. Values are type-erased here; the typed Effect API guarantees
// that erased values carry the types their consumers expect.
type instruction interface {
	instruction()
}

type succeedInstr struct {
	value any
}

type syncInstr struct {
	thunk func() any
}

type suspendInstr struct {
	thunk func() instruction
}

type failInstr struct {
	cause func() cause.Cause[any]
}

type flatMapInstr struct {
	first instruction
	k     func(any) instruction
}

type foldInstr struct {
	first     instruction
	onFailure func(cause.Cause[any]) instruction
	onSuccess func(any) instruction
}

// asyncInstr suspends the fiber. register receives a single-use resume
// callback and may return a canceler, run when the fiber is interrupted
// while suspended.
type asyncInstr struct {
	register func(resume func(instruction)) (cancel func())
}

type forkInstr struct {
	effect instruction
	daemon bool
}

type interruptStatusInstr struct {
	effect        instruction
	interruptible bool
}

type checkInterruptInstr struct {
	k func(interruptible bool) instruction
}

type provideInstr struct {
	env    any
	effect instruction
}

type accessInstr struct {
	k func(env any) instruction
}

type descriptorInstr struct {
	k func(*fiberContext) instruction
}

type yieldInstr struct{}

func (*succeedInstr) instruction()         {}
func (*syncInstr) instruction()            {}
func (*suspendInstr) instruction()         {}
func (*failInstr) instruction()            {}
func (*flatMapInstr) instruction()         {}
func (*foldInstr) instruction()            {}
func (*asyncInstr) instruction()           {}
func (*forkInstr) instruction()            {}
func (*interruptStatusInstr) instruction() {}
func (*checkInterruptInstr) instruction()  {}
func (*provideInstr) instruction()         {}
func (*accessInstr) instruction()          {}
func (*descriptorInstr) instruction()      {}
func (*yieldInstr) instruction()           {}

// frame is a pending continuation on a fiber's explicit stack.
type frame interface {
	frame()
}

type applyFrame struct {
	k func(any) instruction
}

type foldFrame struct {
	onFailure func(cause.Cause[any]) instruction
	onSuccess func(any) instruction
}

// interruptExitFrame pops the interruptibility region entered by an
// interruptStatusInstr.
type interruptExitFrame struct{}

// envExitFrame pops the environment pushed by a provideInstr.
type envExitFrame struct{}

func (*applyFrame) frame()         {}
func (*foldFrame) frame()          {}
func (*interruptExitFrame) frame() {}
func (*envExitFrame) frame()       {}

var (
	theInterruptExit = &interruptExitFrame{}
	theEnvExit       = &envExitFrame{}
	theUnit          = &succeedInstr{value: struct{}{}}
)

func haltInstr(c cause.Cause[any]) instruction {
	return &failInstr{cause: func() cause.Cause[any] { return c }}
}

func dieInstr(err error) instruction {
	return haltInstr(cause.Die[any](err))
}

func exitInstr(x cause.Exit[any, any]) instruction {
	if v, ok := x.Value(); ok {
		return &succeedInstr{value: v}
	}
	return haltInstr(x.Cause())
}
