package ledger

import (
	"errors"
	"math/big"
	"testing"
)

func mustGroup(t *testing.T, legs ...Leg) *Group {
	t.Helper()
	g, err := NewGroup(legs...)
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	return g
}

func TestDispatchFirstMatchWins(t *testing.T) {
	g := mustGroup(t, Leg{Kind: LegAppCall, Args: [][]byte{[]byte("set_role")}})
	ctx := &Context{Group: g, Index: 0}

	var ran string
	routes := []Route{
		{Name: "set_role", Check: SoloCall("set_role"), Run: func(*Context) error { ran = "set_role"; return nil }},
		{Name: "fallback", Check: func(*Group, int) bool { return true }, Run: func(*Context) error { ran = "fallback"; return nil }},
	}
	name, err := Dispatch(routes, ctx)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if name != "set_role" || ran != "set_role" {
		t.Fatalf("wrong route ran: %s / %s", name, ran)
	}
}

func TestDispatchRejectsUnknownShape(t *testing.T) {
	g := mustGroup(t, Leg{Kind: LegAppCall, Args: [][]byte{[]byte("mystery")}})
	ctx := &Context{Group: g, Index: 0}
	_, err := Dispatch([]Route{{Name: "known", Check: SoloCall("known"), Run: func(*Context) error { return nil }}}, ctx)
	if !errors.Is(err, ErrNotRecognized) {
		t.Fatalf("expected ErrNotRecognized, got %v", err)
	}
}

func TestDispatchGuardsRekeyBeforeRoutes(t *testing.T) {
	g := mustGroup(t, Leg{Kind: LegAppCall, Args: [][]byte{[]byte("op")}, RekeyTo: addr(1)})
	ctx := &Context{Group: g, Index: 0}
	ran := false
	_, err := Dispatch([]Route{{Name: "op", Check: SoloCall("op"), Run: func(*Context) error { ran = true; return nil }}}, ctx)
	if !errors.Is(err, ErrRekeySet) {
		t.Fatalf("expected ErrRekeySet, got %v", err)
	}
	if ran {
		t.Fatal("handler ran despite rekey guard")
	}
}

func TestCheckerCombinators(t *testing.T) {
	pay := Leg{Kind: LegPayment, Sender: addr(1), Amount: big.NewInt(RentAdminOptIn)}
	call := Leg{Kind: LegAppCall, Sender: addr(1), Args: [][]byte{[]byte("opt_in"), EncodeUint64(7)}}
	g := mustGroup(t, pay, call)

	check := All(GroupSize(2), ExactPayment(0, RentAdminOptIn), CallAt(1), TagIs("opt_in"), SameSender(0, 1), ArgCount(2))
	if !check(g, 1) {
		t.Fatal("valid shape rejected")
	}
	if check(g, 0) {
		t.Fatal("call-position check ignored")
	}

	short := mustGroup(t, call)
	if check(short, 0) {
		t.Fatal("group-size check ignored")
	}

	wrongRent := mustGroup(t, Leg{Kind: LegPayment, Sender: addr(1), Amount: big.NewInt(RentAdminOptIn - 1)}, call)
	if check(wrongRent, 1) {
		t.Fatal("exact-payment check ignored")
	}

	otherSender := mustGroup(t, Leg{Kind: LegPayment, Sender: addr(2), Amount: big.NewInt(RentAdminOptIn)}, call)
	if check(otherSender, 1) {
		t.Fatal("same-sender check ignored")
	}
}
