package fees

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	errNoShares     = errors.New("fees: split plan needs at least one share")
	errShareSum     = errors.New("fees: share percentages must sum to 100")
	errSharePercent = errors.New("fees: share percentage out of range")
)

// Split computes floor(amount * percent / 100) without intermediate overflow.
// Every settlement path in the marketplace uses this primitive so that a
// royalty, platform fee, and seller remainder always reconcile against the
// gross amount.
func Split(amount *big.Int, percent uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || percent == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(percent)))
	return out.Quo(out, big.NewInt(100))
}

// Remainder returns amount minus the supplied cuts, guarding against the cuts
// exceeding the amount (which would indicate a mis-configured percentage set).
func Remainder(amount *big.Int, cuts ...*big.Int) (*big.Int, error) {
	rest := new(big.Int)
	if amount != nil {
		rest.Set(amount)
	}
	for _, cut := range cuts {
		if cut == nil {
			continue
		}
		rest.Sub(rest, cut)
	}
	if rest.Sign() < 0 {
		return nil, fmt.Errorf("fees: cuts exceed amount %s", amount)
	}
	return rest, nil
}

// Share names one beneficiary of a split plan and its percentage cut.
type Share struct {
	Name    string
	Percent uint32
}

// Plan is a verified fee-split table. Construction fails unless the shares
// sum to exactly 100, so a plan can never leak or duplicate funds. The
// largest share absorbs the floor-division remainder.
type Plan struct {
	shares  []Share
	largest int
}

// NewPlan validates the shares and returns a usable plan.
func NewPlan(shares ...Share) (*Plan, error) {
	if len(shares) == 0 {
		return nil, errNoShares
	}
	total := uint32(0)
	largest := 0
	for i, s := range shares {
		if s.Percent == 0 || s.Percent > 100 {
			return nil, fmt.Errorf("%w: %s=%d", errSharePercent, s.Name, s.Percent)
		}
		total += s.Percent
		if s.Percent > shares[largest].Percent {
			largest = i
		}
	}
	if total != 100 {
		return nil, fmt.Errorf("%w: got %d", errShareSum, total)
	}
	plan := &Plan{shares: make([]Share, len(shares)), largest: largest}
	copy(plan.shares, shares)
	return plan, nil
}

// MustPlan is NewPlan for statically-known tables; it panics on invalid input.
func MustPlan(shares ...Share) *Plan {
	plan, err := NewPlan(shares...)
	if err != nil {
		panic(err)
	}
	return plan
}

// Distribute splits the amount across the plan's shares. The returned map
// keys are the share names; the values always sum to the input amount.
func (p *Plan) Distribute(amount *big.Int) map[string]*big.Int {
	out := make(map[string]*big.Int, len(p.shares))
	distributed := big.NewInt(0)
	for i, s := range p.shares {
		if i == p.largest {
			continue
		}
		cut := Split(amount, s.Percent)
		out[s.Name] = cut
		distributed.Add(distributed, cut)
	}
	rest := big.NewInt(0)
	if amount != nil && amount.Sign() > 0 {
		rest = new(big.Int).Sub(amount, distributed)
	}
	out[p.shares[p.largest].Name] = rest
	return out
}

// Shares returns a copy of the plan's share table.
func (p *Plan) Shares() []Share {
	out := make([]Share, len(p.shares))
	copy(out, p.shares)
	return out
}
