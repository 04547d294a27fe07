// Package options implements a small generic functional-options helper, used
// by clock.NewWallClock to configure a WallClock without a sprawling
// constructor parameter list. Carried over from mebo's internal/options
// package essentially unchanged: the generic Option[T]/Apply shape this
// module needs is exactly the shape mebo already built.
package options

// Option configures a target value of type T. It is the generic interface
// returned by every With... constructor in this module.
type Option[T any] interface {
	apply(T) error
}

// Func adapts a plain function into an Option.
type Func[T any] struct {
	applyFunc func(T) error
}

func (f *Func[T]) apply(target T) error {
	return f.applyFunc(target)
}

// New creates an Option from a function that can fail.
func New[T any](fn func(T) error) *Func[T] {
	return &Func[T]{applyFunc: fn}
}

// NoError creates an Option from a function that cannot fail.
func NoError[T any](fn func(T)) *Func[T] {
	return &Func[T]{
		applyFunc: func(target T) error {
			fn(target)

			return nil
		},
	}
}

// Apply runs every option against target, in order, stopping at the first error.
func Apply[T any](target T, opts ...Option[T]) error {
	for _, opt := range opts {
		if err := opt.apply(target); err != nil {
			return err
		}
	}

	return nil
}
