package ledger

import (
	"errors"
	"math/big"
	"testing"

	"niftmarket/core/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func TestNewGroupBounds(t *testing.T) {
	if _, err := NewGroup(); !errors.Is(err, ErrEmptyGroup) {
		t.Fatalf("expected ErrEmptyGroup, got %v", err)
	}
	legs := make([]Leg, MaxGroupLegs+1)
	for i := range legs {
		legs[i] = Leg{Kind: LegPayment, Amount: big.NewInt(1)}
	}
	if _, err := NewGroup(legs...); !errors.Is(err, ErrGroupTooLarge) {
		t.Fatalf("expected ErrGroupTooLarge, got %v", err)
	}
}

func TestGroupIsImmutableCopy(t *testing.T) {
	leg := Leg{Kind: LegPayment, Amount: big.NewInt(100), Args: [][]byte{[]byte("tag")}}
	g, err := NewGroup(leg)
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	leg.Amount.SetInt64(999)
	leg.Args[0][0] = 'x'
	if g.Leg(0).Amount.Int64() != 100 {
		t.Fatal("group shares the caller's amount")
	}
	if string(g.Leg(0).Args[0]) != "tag" {
		t.Fatal("group shares the caller's args")
	}
}

func TestCheckRekeyRejectsDelegation(t *testing.T) {
	g, err := NewGroup(
		Leg{Kind: LegPayment, Amount: big.NewInt(1)},
		Leg{Kind: LegAppCall, RekeyTo: addr(9)},
	)
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	if err := g.CheckRekey(); !errors.Is(err, ErrRekeySet) {
		t.Fatalf("expected ErrRekeySet, got %v", err)
	}
}

func TestUint64ArgRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 255, 1 << 40, ^uint64(0)} {
		got, err := Uint64Arg(EncodeUint64(v))
		if err != nil {
			t.Fatalf("Uint64Arg(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip %d -> %d", v, got)
		}
	}
	if _, err := Uint64Arg(nil); err == nil {
		t.Fatal("empty argument accepted")
	}
	if _, err := Uint64Arg(make([]byte, 9)); err == nil {
		t.Fatal("oversized argument accepted")
	}
	// Short encodings are zero-extended.
	got, err := Uint64Arg([]byte{0x01, 0x00})
	if err != nil || got != 256 {
		t.Fatalf("short encoding: got %d, %v", got, err)
	}
}

func TestValueEncodingRoundTrip(t *testing.T) {
	for _, v := range []Value{BytesValue([]byte("owner")), UintValue(42), UintValue(0)} {
		raw, err := v.Encode()
		if err != nil {
			t.Fatalf("encode %+v: %v", v, err)
		}
		back, err := DecodeValue(raw)
		if err != nil {
			t.Fatalf("decode %+v: %v", v, err)
		}
		if back.Kind != v.Kind || back.Uint != v.Uint || string(back.Bytes) != string(v.Bytes) {
			t.Fatalf("round trip mismatch: %+v -> %+v", v, back)
		}
	}
	if _, err := DecodeValue([]byte{0xff, 0x01}); !errors.Is(err, ErrBadValueKind) {
		t.Fatalf("expected ErrBadValueKind, got %v", err)
	}
}
