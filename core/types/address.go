package types

import (
	"encoding/hex"
	"fmt"
)

// AddressLength is the byte length of an Address.
const AddressLength = 20

// Address identifies an externally-owned account or a program custody account.
type Address [AddressLength]byte

// BytesToAddress converts a 20-byte slice into an Address.
func BytesToAddress(b []byte) (Address, error) {
	var addr Address
	if len(b) != AddressLength {
		return addr, fmt.Errorf("invalid address length %d", len(b))
	}
	copy(addr[:], b)
	return addr, nil
}

// ZeroAddress is the empty address. A zero delegation target on a transaction
// leg means "no delegation requested".
var ZeroAddress Address

// Hex returns the 0x-prefixed hexadecimal form of the address.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the all-zero value.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Bytes returns a copy of the address payload.
func (a Address) Bytes() []byte {
	out := make([]byte, len(a))
	copy(out, a[:])
	return out
}

// ParseAddress decodes a 0x-prefixed or bare hex string into an address.
func ParseAddress(s string) (Address, error) {
	var addr Address
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("invalid address length %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}
