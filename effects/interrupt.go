package effects

// InterruptStatus is the interruptibility of the region an effect was
// entered from. Restore uses it to return to that region.
type InterruptStatus bool

const (
	StatusInterruptible   InterruptStatus = true
	StatusUninterruptible InterruptStatus = false
)

// Interruptible reports whether the status allows interruption.
func (s InterruptStatus) Interruptible() bool { return bool(s) }

// Uninterruptible runs eff in a region where interruption is deferred
// until the region is left.
func Uninterruptible[R, E, A any](eff Effect[R, E, A]) Effect[R, E, A] {
	return withStatus(StatusUninterruptible, eff)
}

// Interruptible runs eff in a region where interruption is delivered, even
// inside an uninterruptible region.
func Interruptible[R, E, A any](eff Effect[R, E, A]) Effect[R, E, A] {
	return withStatus(StatusInterruptible, eff)
}

// Restore runs eff with the interruptibility captured in status.
func Restore[R, E, A any](status InterruptStatus, eff Effect[R, E, A]) Effect[R, E, A] {
	return withStatus(status, eff)
}

// UninterruptibleMask runs the effect f builds in an uninterruptible
// region. f receives the status of the enclosing region, so parts of the
// effect can be made interruptible again with Restore.
func UninterruptibleMask[R, E, A any](f func(InterruptStatus) Effect[R, E, A]) Effect[R, E, A] {
	return checkStatus(func(status InterruptStatus) Effect[R, E, A] {
		return Uninterruptible(f(status))
	})
}

// InterruptibleMask is the interruptible counterpart of
// UninterruptibleMask.
func InterruptibleMask[R, E, A any](f func(InterruptStatus) Effect[R, E, A]) Effect[R, E, A] {
	return checkStatus(func(status InterruptStatus) Effect[R, E, A] {
		return Interruptible(f(status))
	})
}

// CheckInterruptible builds an effect from the current interruptibility.
func CheckInterruptible[R, E, A any](f func(InterruptStatus) Effect[R, E, A]) Effect[R, E, A] {
	return checkStatus(f)
}

func checkStatus[R, E, A any](f func(InterruptStatus) Effect[R, E, A]) Effect[R, E, A] {
	return wrap[R, E, A](&checkInterruptInstr{
		k: func(interruptible bool) instruction { return f(InterruptStatus(interruptible)).node() },
	})
}

func withStatus[R, E, A any](status InterruptStatus, eff Effect[R, E, A]) Effect[R, E, A] {
	return wrap[R, E, A](&interruptStatusInstr{effect: eff.node(), interruptible: bool(status)})
}
