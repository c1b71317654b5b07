package guards

import (
	"context"
	"sync"

	errspkg "github.com/drblury/botcore/internal/runtime/errors"
	"github.com/drblury/botcore/internal/runtime/event"
)

// Verdict is the outcome of one guard check.
type Verdict struct {
	permitted bool
	reason    string
}

// Permit lets the event continue to the next guard.
func Permit() Verdict { return Verdict{permitted: true} }

// Veto stops the event with a human-readable reason.
func Veto(reason string) Verdict { return Verdict{reason: reason} }

// Permitted reports whether the verdict lets the event through.
func (v Verdict) Permitted() bool { return v.permitted }

// Reason is empty for permits.
func (v Verdict) Reason() string { return v.reason }

// CheckFunc inspects an event. Returning an error counts as a veto.
type CheckFunc func(ctx context.Context, env *event.Envelope) (Verdict, error)

// Guard is a named check evaluated before any handler sees an event.
type Guard struct {
	Name  string
	Check CheckFunc
}

// New builds a Guard.
func New(name string, check CheckFunc) Guard {
	return Guard{Name: name, Check: check}
}

func (g Guard) validate() error {
	if g.Name == "" {
		return errspkg.ErrGuardNameRequired
	}
	if g.Check == nil {
		return errspkg.ErrGuardCheckRequired
	}
	return nil
}

// Result describes a whole chain evaluation.
type Result struct {
	Permitted bool
	// VetoedBy is the name of the guard that stopped the event.
	VetoedBy string
	Reason   string
	// Fault is a *errors.GuardFaultError when the veto came from a failing guard.
	Fault error
}

// Evaluate runs guards in order and stops at the first veto. A guard that
// errors or panics vetoes the event; the fault is reported in the Result and
// never raised.
func Evaluate(ctx context.Context, guards []Guard, env *event.Envelope) Result {
	for _, g := range guards {
		verdict, err := run(ctx, g, env)
		if err != nil {
			fault := &errspkg.GuardFaultError{Guard: g.Name, Err: err}
			return Result{VetoedBy: g.Name, Reason: fault.Error(), Fault: fault}
		}
		if !verdict.Permitted() {
			return Result{VetoedBy: g.Name, Reason: verdict.Reason()}
		}
	}
	return Result{Permitted: true}
}

func run(ctx context.Context, g Guard, env *event.Envelope) (verdict Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			verdict, err = Verdict{}, errspkg.FromPanic(r)
		}
	}()
	if g.Check == nil {
		return Verdict{}, errspkg.ErrGuardCheckRequired
	}
	return g.Check(ctx, env)
}

// Chain is an ordered guard list that can grow while the runtime is wired.
type Chain struct {
	mu     sync.RWMutex
	guards []Guard
}

// NewChain validates and stores guards in the given order.
func NewChain(guards ...Guard) (*Chain, error) {
	c := &Chain{}
	if err := c.Use(guards...); err != nil {
		return nil, err
	}
	return c, nil
}

// Use appends guards after the existing ones. Nothing is added when any guard
// is invalid.
func (c *Chain) Use(guards ...Guard) error {
	for _, g := range guards {
		if err := g.validate(); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guards = append(c.guards, guards...)
	return nil
}

// Guards returns a copy of the registered guards.
func (c *Chain) Guards() []Guard {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Guard, len(c.guards))
	copy(out, c.guards)
	return out
}

// Names lists guard names in evaluation order.
func (c *Chain) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.guards))
	for i, g := range c.guards {
		names[i] = g.Name
	}
	return names
}

// Evaluate runs the chain against env.
func (c *Chain) Evaluate(ctx context.Context, env *event.Envelope) Result {
	return Evaluate(ctx, c.Guards(), env)
}
