package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"niftmarket/core/types"
)

// MaxGroupLegs is the ledger-wide limit on legs per atomic group.
const MaxGroupLegs = 16

// LegKind identifies what a single leg of an atomic group does.
type LegKind uint8

const (
	// LegPayment moves native currency between accounts.
	LegPayment LegKind = iota + 1
	// LegAssetTransfer moves units of a registered asset between accounts.
	LegAssetTransfer
	// LegAppCall invokes an operation on a ledger-resident program.
	LegAppCall
)

func (k LegKind) String() string {
	switch k {
	case LegPayment:
		return "payment"
	case LegAssetTransfer:
		return "asset-transfer"
	case LegAppCall:
		return "app-call"
	default:
		return fmt.Sprintf("leg-kind(%d)", uint8(k))
	}
}

// Leg is one operation inside an atomic group. Payment and asset-transfer
// legs use Sender/Receiver/Amount (plus AssetID); app-call legs use Target,
// Args (first entry is the operation tag) and the reference lists. RekeyTo is
// a delegation field that must stay zero on every leg; a set value means the
// submitter is trying to hand account control to a third party mid-group.
type Leg struct {
	Kind     LegKind
	Sender   types.Address
	Receiver types.Address
	Amount   *big.Int
	AssetID  uint64
	Target   uint64
	Args     [][]byte
	Accounts []types.Address
	Assets   []uint64
	Programs []uint64
	RekeyTo  types.Address
}

// Clone returns a deep copy of the leg.
func (l Leg) Clone() Leg {
	out := l
	if l.Amount != nil {
		out.Amount = new(big.Int).Set(l.Amount)
	}
	if l.Args != nil {
		out.Args = make([][]byte, len(l.Args))
		for i, a := range l.Args {
			out.Args[i] = append([]byte(nil), a...)
		}
	}
	out.Accounts = append([]types.Address(nil), l.Accounts...)
	out.Assets = append([]uint64(nil), l.Assets...)
	out.Programs = append([]uint64(nil), l.Programs...)
	return out
}

// Tag returns the operation tag of an app-call leg, or "" for other kinds.
func (l Leg) Tag() string {
	if l.Kind != LegAppCall || len(l.Args) == 0 {
		return ""
	}
	return string(l.Args[0])
}

var (
	// ErrEmptyGroup rejects a group with no legs.
	ErrEmptyGroup = errors.New("ledger: empty group")
	// ErrGroupTooLarge rejects a group above the leg limit.
	ErrGroupTooLarge = errors.New("ledger: group exceeds leg limit")
	// ErrRekeySet rejects any group carrying a delegation field.
	ErrRekeySet = errors.New("ledger: rekey field set")
)

// Group is an ordered, immutable bundle of legs executed all-or-nothing.
type Group struct {
	legs []Leg
}

// NewGroup validates the leg bundle and copies it into an immutable group.
func NewGroup(legs ...Leg) (*Group, error) {
	if len(legs) == 0 {
		return nil, ErrEmptyGroup
	}
	if len(legs) > MaxGroupLegs {
		return nil, fmt.Errorf("%w: %d legs", ErrGroupTooLarge, len(legs))
	}
	g := &Group{legs: make([]Leg, len(legs))}
	for i, leg := range legs {
		g.legs[i] = leg.Clone()
	}
	return g, nil
}

// Len returns the number of legs.
func (g *Group) Len() int { return len(g.legs) }

// Leg returns the leg at index i.
func (g *Group) Leg(i int) Leg { return g.legs[i] }

// CheckRekey returns ErrRekeySet if any leg carries a delegation target.
func (g *Group) CheckRekey() error {
	for i, leg := range g.legs {
		if !leg.RekeyTo.IsZero() {
			return fmt.Errorf("%w: leg %d", ErrRekeySet, i)
		}
	}
	return nil
}

// Uint64Arg decodes a big-endian unsigned argument of up to eight bytes.
func Uint64Arg(raw []byte) (uint64, error) {
	if len(raw) == 0 || len(raw) > 8 {
		return 0, fmt.Errorf("ledger: uint argument must be 1-8 bytes, got %d", len(raw))
	}
	var buf [8]byte
	copy(buf[8-len(raw):], raw)
	return binary.BigEndian.Uint64(buf[:]), nil
}

// EncodeUint64 is the inverse of Uint64Arg, always eight bytes.
func EncodeUint64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}
