// Package state keeps the addresses and code ids of a contract deployment.
package state

import (
	"maps"
	"sync"

	errorsmod "cosmossdk.io/errors"
)

const codespace = "state"

var (
	ErrAddressNotFound = errorsmod.Register(codespace, 2, "contract address not found")
	ErrCodeIDNotFound  = errorsmod.Register(codespace, 3, "contract code id not found")
	// ErrCorruptState is returned when a state file does not have the expected layout.
	ErrCorruptState = errorsmod.Register(codespace, 4, "state file is corrupted")
	// ErrEmptyState is returned when a state file has no entry for the requested deployment.
	ErrEmptyState = errorsmod.Register(codespace, 5, "state is empty")
)

// Store reads and writes the deployment of a single chain.
type Store interface {
	GetAddress(contractID string) (string, error)
	SetAddress(contractID, address string)
	GetCodeID(contractID string) (uint64, error)
	SetCodeID(contractID string, codeID uint64)
	// AllAddresses returns a copy of every known contract address.
	AllAddresses() (map[string]string, error)
	AllCodeIDs() (map[string]uint64, error)
}

var (
	_ Store = (*LocalState)(nil)
	_ Store = (*SharedState)(nil)
)

// LocalState is an in-memory Store owned by a single goroutine.
type LocalState struct {
	addresses map[string]string
	codeIDs   map[string]uint64
}

func NewLocalState() *LocalState {
	return &LocalState{
		addresses: make(map[string]string),
		codeIDs:   make(map[string]uint64),
	}
}

func (s *LocalState) GetAddress(contractID string) (string, error) {
	addr, ok := s.addresses[contractID]
	if !ok {
		return "", errorsmod.Wrap(ErrAddressNotFound, contractID)
	}
	return addr, nil
}

func (s *LocalState) SetAddress(contractID, address string) {
	s.addresses[contractID] = address
}

func (s *LocalState) GetCodeID(contractID string) (uint64, error) {
	codeID, ok := s.codeIDs[contractID]
	if !ok {
		return 0, errorsmod.Wrap(ErrCodeIDNotFound, contractID)
	}
	return codeID, nil
}

func (s *LocalState) SetCodeID(contractID string, codeID uint64) {
	s.codeIDs[contractID] = codeID
}

func (s *LocalState) AllAddresses() (map[string]string, error) {
	return maps.Clone(s.addresses), nil
}

func (s *LocalState) AllCodeIDs() (map[string]uint64, error) {
	return maps.Clone(s.codeIDs), nil
}

// SharedState guards any Store so it can be used from several goroutines.
type SharedState struct {
	mu    sync.RWMutex
	inner Store
}

func NewSharedState(inner Store) *SharedState {
	return &SharedState{inner: inner}
}

func (s *SharedState) GetAddress(contractID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.GetAddress(contractID)
}

func (s *SharedState) SetAddress(contractID, address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.SetAddress(contractID, address)
}

func (s *SharedState) GetCodeID(contractID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.GetCodeID(contractID)
}

func (s *SharedState) SetCodeID(contractID string, codeID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.SetCodeID(contractID, codeID)
}

func (s *SharedState) AllAddresses() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.AllAddresses()
}

func (s *SharedState) AllCodeIDs() (map[string]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.AllCodeIDs()
}

// Update runs fn with exclusive access to the wrapped store.
func (s *SharedState) Update(fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.inner)
}
