package types

import "math/big"

// Holding tracks an account's balance in a single registered asset together
// with its transfer-freeze flag. Frozen holdings reject outgoing transfers
// until an authorised program unfreezes them.
type Holding struct {
	AssetID uint64
	Amount  *big.Int
	Frozen  bool
}

// Account is the balance record for one address. Balance carries the native
// currency; Holdings carries every asset the account has opted into.
type Account struct {
	Balance  *big.Int
	Holdings []Holding
}

// NewAccount returns an account with zeroed balances.
func NewAccount() *Account {
	return &Account{Balance: big.NewInt(0)}
}

// Holding returns the holding for the given asset, if present.
func (a *Account) Holding(assetID uint64) (*Holding, bool) {
	if a == nil {
		return nil, false
	}
	for i := range a.Holdings {
		if a.Holdings[i].AssetID == assetID {
			return &a.Holdings[i], true
		}
	}
	return nil, false
}

// EnsureHolding returns the holding for the given asset, creating a zeroed
// entry when the account has not touched the asset before.
func (a *Account) EnsureHolding(assetID uint64) *Holding {
	if h, ok := a.Holding(assetID); ok {
		if h.Amount == nil {
			h.Amount = big.NewInt(0)
		}
		return h
	}
	a.Holdings = append(a.Holdings, Holding{AssetID: assetID, Amount: big.NewInt(0)})
	return &a.Holdings[len(a.Holdings)-1]
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Balance: big.NewInt(0)}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	if len(a.Holdings) > 0 {
		clone.Holdings = make([]Holding, len(a.Holdings))
		for i, h := range a.Holdings {
			clone.Holdings[i] = Holding{AssetID: h.AssetID, Amount: big.NewInt(0), Frozen: h.Frozen}
			if h.Amount != nil {
				clone.Holdings[i].Amount = new(big.Int).Set(h.Amount)
			}
		}
	}
	return clone
}
