package ledger

import (
	"fmt"

	"niftmarket/core/types"
	"niftmarket/storage"
)

// Invoker lets a program synchronously call another program within the same
// atomic execution. The node implements it; the callee observes the caller's
// program identity through the derived context. Calls are modeled as fresh
// single-leg groups so the callee's structural checkers apply unchanged.
type Invoker interface {
	InvokeCall(ctx *Context, callerID uint64, leg Leg) error
}

// Context carries everything a program operation needs during execution: the
// group under evaluation, the position of the leg that invoked the program,
// the ledger timestamp, the identity of the calling program (zero for
// externally submitted groups), and the staged state views (bank plus raw
// database) that participate in the group's all-or-nothing commit.
type Context struct {
	Now    uint64
	Group  *Group
	Index  int
	Caller uint64
	Bank   *Bank
	DB     storage.Database
	Invoke Invoker
}

// Leg returns the app-call leg that triggered this execution.
func (c *Context) Leg() Leg {
	return c.Group.Leg(c.Index)
}

// Sender returns the calling leg's sender address.
func (c *Context) Sender() types.Address {
	return c.Leg().Sender
}

// Tag returns the calling leg's operation tag.
func (c *Context) Tag() string {
	return c.Leg().Tag()
}

// Arg returns positional argument i of the calling leg (0 = the tag).
func (c *Context) Arg(i int) ([]byte, error) {
	args := c.Leg().Args
	if i < 0 || i >= len(args) {
		return nil, fmt.Errorf("ledger: argument %d out of range (%d supplied)", i, len(args))
	}
	return args[i], nil
}

// UintArg decodes positional argument i as a big-endian unsigned integer.
func (c *Context) UintArg(i int) (uint64, error) {
	raw, err := c.Arg(i)
	if err != nil {
		return 0, err
	}
	return Uint64Arg(raw)
}

// AddressArg decodes positional argument i as a 20-byte address.
func (c *Context) AddressArg(i int) (types.Address, error) {
	raw, err := c.Arg(i)
	if err != nil {
		return types.ZeroAddress, err
	}
	if len(raw) != types.AddressLength {
		return types.ZeroAddress, fmt.Errorf("ledger: argument %d is not an address (%d bytes)", i, len(raw))
	}
	var addr types.Address
	copy(addr[:], raw)
	return addr, nil
}

// Account returns account reference i of the calling leg.
func (c *Context) Account(i int) (types.Address, error) {
	accounts := c.Leg().Accounts
	if i < 0 || i >= len(accounts) {
		return types.ZeroAddress, fmt.Errorf("ledger: account reference %d out of range (%d supplied)", i, len(accounts))
	}
	return accounts[i], nil
}

// Asset returns asset reference i of the calling leg.
func (c *Context) Asset(i int) (uint64, error) {
	assets := c.Leg().Assets
	if i < 0 || i >= len(assets) {
		return 0, fmt.Errorf("ledger: asset reference %d out of range (%d supplied)", i, len(assets))
	}
	return assets[i], nil
}

// Program returns foreign-program reference i of the calling leg.
func (c *Context) Program(i int) (uint64, error) {
	programs := c.Leg().Programs
	if i < 0 || i >= len(programs) {
		return 0, fmt.Errorf("ledger: program reference %d out of range (%d supplied)", i, len(programs))
	}
	return programs[i], nil
}
