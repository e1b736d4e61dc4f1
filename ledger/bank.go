package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"niftmarket/core/types"
	"niftmarket/storage"
)

var (
	// ErrInsufficientFunds rejects a transfer exceeding the sender's balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrHoldingFrozen rejects asset movement through a frozen holding.
	ErrHoldingFrozen = errors.New("ledger: holding frozen")
	// ErrNoHolding rejects asset movement for an account without the holding.
	ErrNoHolding = errors.New("ledger: account has no holding for asset")
	// ErrInvalidAmount rejects nil or negative transfer amounts.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
)

// Bank holds every account's native balance and asset holdings, keyed by
// address on the underlying database. It runs against the node's overlay
// during group execution so its moves participate in all-or-nothing commit.
type Bank struct {
	db storage.Database
}

// NewBank binds the account space onto db.
func NewBank(db storage.Database) *Bank {
	return &Bank{db: db}
}

// ProgramAddress derives the custody address for a program identity. The
// derivation is one-way: nothing holds a signing key for these accounts, so
// only the program itself can move funds out.
func ProgramAddress(programID uint64) types.Address {
	preimage := append([]byte("program/"), EncodeUint64(programID)...)
	digest := crypto.Keccak256(preimage)
	var addr types.Address
	copy(addr[:], digest[len(digest)-types.AddressLength:])
	return addr
}

func accountKey(addr types.Address) []byte {
	return append([]byte("a/"), addr[:]...)
}

// Account loads the account record for addr, returning a zeroed account when
// the address has never been touched.
func (b *Bank) Account(addr types.Address) (*types.Account, error) {
	raw, err := b.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return types.NewAccount(), nil
	}
	if err != nil {
		return nil, err
	}
	account := new(types.Account)
	if err := rlp.DecodeBytes(raw, account); err != nil {
		return nil, fmt.Errorf("ledger: decode account %s: %w", addr.Hex(), err)
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	return account, nil
}

func (b *Bank) putAccount(addr types.Address, account *types.Account) error {
	encoded, err := rlp.EncodeToBytes(account)
	if err != nil {
		return fmt.Errorf("ledger: encode account %s: %w", addr.Hex(), err)
	}
	return b.db.Put(accountKey(addr), encoded)
}

// Balance returns the native balance of addr.
func (b *Bank) Balance(addr types.Address) (*big.Int, error) {
	account, err := b.Account(addr)
	if err != nil {
		return nil, err
	}
	return account.Balance, nil
}

// AssetBalance returns addr's balance in the given asset (zero if no holding).
func (b *Bank) AssetBalance(addr types.Address, assetID uint64) (*big.Int, error) {
	account, err := b.Account(addr)
	if err != nil {
		return nil, err
	}
	if h, ok := account.Holding(assetID); ok && h.Amount != nil {
		return new(big.Int).Set(h.Amount), nil
	}
	return big.NewInt(0), nil
}

// Mint credits native currency to addr. Used at genesis and by tests; group
// execution only ever moves existing funds.
func (b *Bank) Mint(addr types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	account, err := b.Account(addr)
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return b.putAccount(addr, account)
}

// MintAsset credits asset units to addr, creating the holding if needed.
func (b *Bank) MintAsset(addr types.Address, assetID uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	account, err := b.Account(addr)
	if err != nil {
		return err
	}
	holding := account.EnsureHolding(assetID)
	holding.Amount = new(big.Int).Add(holding.Amount, amount)
	return b.putAccount(addr, account)
}

// Transfer moves native currency from one account to another.
func (b *Bank) Transfer(from, to types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	sender, err := b.Account(from)
	if err != nil {
		return err
	}
	if sender.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from.Hex(), sender.Balance, amount)
	}
	receiver, err := b.Account(to)
	if err != nil {
		return err
	}
	sender.Balance = new(big.Int).Sub(sender.Balance, amount)
	receiver.Balance = new(big.Int).Add(receiver.Balance, amount)
	if err := b.putAccount(from, sender); err != nil {
		return err
	}
	return b.putAccount(to, receiver)
}

// TransferAsset moves asset units between accounts. Both sides must have an
// unfrozen holding; a frozen holding can neither send nor receive.
func (b *Bank) TransferAsset(from, to types.Address, assetID uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	sender, err := b.Account(from)
	if err != nil {
		return err
	}
	sh, ok := sender.Holding(assetID)
	if !ok {
		return fmt.Errorf("%w: %s asset %d", ErrNoHolding, from.Hex(), assetID)
	}
	if sh.Frozen {
		return fmt.Errorf("%w: %s asset %d", ErrHoldingFrozen, from.Hex(), assetID)
	}
	if sh.Amount.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s of asset %d, needs %s", ErrInsufficientFunds, from.Hex(), sh.Amount, assetID, amount)
	}
	receiver, err := b.Account(to)
	if err != nil {
		return err
	}
	rh := receiver.EnsureHolding(assetID)
	if rh.Frozen {
		return fmt.Errorf("%w: %s asset %d", ErrHoldingFrozen, to.Hex(), assetID)
	}
	sh.Amount = new(big.Int).Sub(sh.Amount, amount)
	rh.Amount = new(big.Int).Add(rh.Amount, amount)
	if err := b.putAccount(from, sender); err != nil {
		return err
	}
	return b.putAccount(to, receiver)
}

// OptInAsset creates a zeroed holding for the asset on addr.
func (b *Bank) OptInAsset(addr types.Address, assetID uint64) error {
	account, err := b.Account(addr)
	if err != nil {
		return err
	}
	account.EnsureHolding(assetID)
	return b.putAccount(addr, account)
}

// SetFrozen flips the freeze flag on addr's holding for the asset.
func (b *Bank) SetFrozen(addr types.Address, assetID uint64, frozen bool) error {
	account, err := b.Account(addr)
	if err != nil {
		return err
	}
	holding := account.EnsureHolding(assetID)
	holding.Frozen = frozen
	return b.putAccount(addr, account)
}

// Frozen reports whether addr's holding for the asset is frozen.
func (b *Bank) Frozen(addr types.Address, assetID uint64) (bool, error) {
	account, err := b.Account(addr)
	if err != nil {
		return false, err
	}
	if h, ok := account.Holding(assetID); ok {
		return h.Frozen, nil
	}
	return false, nil
}
