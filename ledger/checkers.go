package ledger

import (
	"math/big"

	"niftmarket/core/types"
)

// Rent amounts demanded by deployment-triggering payment legs.
const (
	RentDualAssetOptIn = 200_000
	RentAdminOptIn     = 900_000
	RentSpaceDeploy    = 1_400_000
)

// Checker is a pure structural predicate over an atomic group and the index
// of the leg that invoked the program. Checkers never read program state; a
// group whose shape fails every checker is rejected before dispatch.
type Checker func(g *Group, idx int) bool

// All combines checkers conjunctively.
func All(checks ...Checker) Checker {
	return func(g *Group, idx int) bool {
		for _, check := range checks {
			if !check(g, idx) {
				return false
			}
		}
		return true
	}
}

// GroupSize asserts the exact number of legs.
func GroupSize(n int) Checker {
	return func(g *Group, idx int) bool { return g.Len() == n }
}

// CallAt asserts the invoking leg sits at position pos and is an app call.
func CallAt(pos int) Checker {
	return func(g *Group, idx int) bool {
		return idx == pos && pos < g.Len() && g.Leg(pos).Kind == LegAppCall
	}
}

// KindAt asserts the leg at pos has the given kind.
func KindAt(pos int, kind LegKind) Checker {
	return func(g *Group, idx int) bool {
		return pos < g.Len() && g.Leg(pos).Kind == kind
	}
}

// TagIs asserts the invoking leg carries the given operation tag.
func TagIs(tag string) Checker {
	return func(g *Group, idx int) bool {
		return g.Leg(idx).Tag() == tag
	}
}

// ArgCount asserts the invoking leg carries exactly n arguments (tag included).
func ArgCount(n int) Checker {
	return func(g *Group, idx int) bool {
		return len(g.Leg(idx).Args) == n
	}
}

// ExactPayment asserts the leg at pos is a native payment of exactly amount.
func ExactPayment(pos int, amount uint64) Checker {
	want := new(big.Int).SetUint64(amount)
	return func(g *Group, idx int) bool {
		if pos >= g.Len() {
			return false
		}
		leg := g.Leg(pos)
		return leg.Kind == LegPayment && leg.Amount != nil && leg.Amount.Cmp(want) == 0
	}
}

// PositivePayment asserts the leg at pos is a native payment above zero.
func PositivePayment(pos int) Checker {
	return func(g *Group, idx int) bool {
		if pos >= g.Len() {
			return false
		}
		leg := g.Leg(pos)
		return leg.Kind == LegPayment && leg.Amount != nil && leg.Amount.Sign() > 0
	}
}

// TransferOfOne asserts the leg at pos moves exactly one unit of an asset,
// the shape of an NFT escrow leg.
func TransferOfOne(pos int) Checker {
	return func(g *Group, idx int) bool {
		if pos >= g.Len() {
			return false
		}
		leg := g.Leg(pos)
		return leg.Kind == LegAssetTransfer && leg.Amount != nil && leg.Amount.Cmp(big.NewInt(1)) == 0
	}
}

// SameSender asserts the legs at positions a and b share one sender.
func SameSender(a, b int) Checker {
	return func(g *Group, idx int) bool {
		if a >= g.Len() || b >= g.Len() {
			return false
		}
		return g.Leg(a).Sender == g.Leg(b).Sender
	}
}

// SenderIs asserts the leg at pos was sent by addr.
func SenderIs(pos int, addr types.Address) Checker {
	return func(g *Group, idx int) bool {
		return pos < g.Len() && g.Leg(pos).Sender == addr
	}
}

// SoloCall is the shape of the single-leg administrative operations: one
// app-call leg, nothing else in the group.
func SoloCall(tag string) Checker {
	return All(GroupSize(1), CallAt(0), TagIs(tag))
}
