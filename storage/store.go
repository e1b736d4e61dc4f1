package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// ProgramStore exposes the global and per-account (local) key space of a
// single ledger-resident program. Keys are namespaced by program ID so that
// programs sharing one database can never collide.
type ProgramStore struct {
	db Database
	id uint64
}

// NewProgramStore binds the program's key space onto db.
func NewProgramStore(db Database, programID uint64) *ProgramStore {
	return &ProgramStore{db: db, id: programID}
}

// ProgramID returns the program this store is bound to.
func (s *ProgramStore) ProgramID() uint64 { return s.id }

func (s *ProgramStore) globalKey(key string) []byte {
	return []byte(fmt.Sprintf("p/%d/g/%s", s.id, key))
}

func (s *ProgramStore) localKey(addr []byte, key string) []byte {
	return []byte(fmt.Sprintf("p/%d/l/%x/%s", s.id, addr, key))
}

// SetGlobal writes a raw value into the program's global state.
func (s *ProgramStore) SetGlobal(key string, value []byte) error {
	return s.db.Put(s.globalKey(key), value)
}

// Global reads a raw value from the program's global state.
func (s *ProgramStore) Global(key string) ([]byte, error) {
	return s.db.Get(s.globalKey(key))
}

// HasGlobal reports whether the global key exists.
func (s *ProgramStore) HasGlobal(key string) (bool, error) {
	return s.db.Has(s.globalKey(key))
}

// DeleteGlobal removes a global key.
func (s *ProgramStore) DeleteGlobal(key string) error {
	return s.db.Delete(s.globalKey(key))
}

// SetLocal writes a raw value into the program's local state for addr.
func (s *ProgramStore) SetLocal(addr []byte, key string, value []byte) error {
	return s.db.Put(s.localKey(addr, key), value)
}

// Local reads a raw value from the program's local state for addr.
func (s *ProgramStore) Local(addr []byte, key string) ([]byte, error) {
	return s.db.Get(s.localKey(addr, key))
}

// HasLocal reports whether the local key exists for addr.
func (s *ProgramStore) HasLocal(addr []byte, key string) (bool, error) {
	return s.db.Has(s.localKey(addr, key))
}

// DeleteLocal removes a local key for addr.
func (s *ProgramStore) DeleteLocal(addr []byte, key string) error {
	return s.db.Delete(s.localKey(addr, key))
}

// SetGlobalRecord RLP-encodes record into the program's global state.
func (s *ProgramStore) SetGlobalRecord(key string, record interface{}) error {
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return fmt.Errorf("storage: encode %q: %w", key, err)
	}
	return s.SetGlobal(key, encoded)
}

// GlobalRecord decodes the RLP record stored under key into out.
func (s *ProgramStore) GlobalRecord(key string, out interface{}) error {
	raw, err := s.Global(key)
	if err != nil {
		return err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return fmt.Errorf("storage: decode %q: %w", key, err)
	}
	return nil
}

// SetLocalRecord RLP-encodes record into the program's local state for addr.
func (s *ProgramStore) SetLocalRecord(addr []byte, key string, record interface{}) error {
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return fmt.Errorf("storage: encode %q: %w", key, err)
	}
	return s.SetLocal(addr, key, encoded)
}

// LocalRecord decodes the RLP record stored under key for addr into out.
func (s *ProgramStore) LocalRecord(addr []byte, key string, out interface{}) error {
	raw, err := s.Local(addr, key)
	if err != nil {
		return err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return fmt.Errorf("storage: decode %q: %w", key, err)
	}
	return nil
}
