package ledger

import "errors"

// ErrNotRecognized is returned when no route's checker matches the group.
// The rejection happens before any state access.
var ErrNotRecognized = errors.New("ledger: operation not recognized")

// Handler runs the state transition for a matched operation.
type Handler func(ctx *Context) error

// Route pairs an operation's structural checker with its handler. Routes are
// evaluated in declaration order; declare the most specific shapes first.
type Route struct {
	Name  string
	Check Checker
	Run   Handler
}

// Dispatch guards the group against delegation, then tries each route's
// checker in priority order and runs the first match. Exactly one route runs
// per invocation.
func Dispatch(routes []Route, ctx *Context) (string, error) {
	if err := ctx.Group.CheckRekey(); err != nil {
		return "", err
	}
	for _, route := range routes {
		if route.Check(ctx.Group, ctx.Index) {
			return route.Name, route.Run(ctx)
		}
	}
	return "", ErrNotRecognized
}

// Program is a deployed, ledger-resident unit of state and operations. The
// node routes app-call legs to the program whose identity matches the leg's
// target.
type Program interface {
	ID() uint64
	Execute(ctx *Context) error
}
