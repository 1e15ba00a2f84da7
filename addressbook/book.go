// Package addressbook keeps human readable aliases for contract addresses, per chain.
package addressbook

import (
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"

	errorsmod "cosmossdk.io/errors"

	"github.com/cosmos/cosmos-sdk/types/bech32"
)

const codespace = "addressbook"

var (
	ErrInvalidAddress  = errorsmod.Register(codespace, 2, "invalid bech32 address")
	ErrUnresolved      = errorsmod.Register(codespace, 3, "duplicate alias left unresolved")
	ErrAliasTaken      = errorsmod.Register(codespace, 4, "alias already taken")
	ErrInvalidStrategy = errorsmod.Register(codespace, 5, "invalid strategy")
	ErrInvalidAlias    = errorsmod.Register(codespace, 6, "invalid alias")
)

// Book maps chain id to alias to address. It is stored as one TOML table per chain.
type Book struct {
	path    string
	entries map[string]map[string]string
}

// Load reads the book at path. A missing file yields an empty book.
func Load(path string) (*Book, error) {
	b := &Book{path: path, entries: make(map[string]map[string]string)}

	_, err := toml.DecodeFile(path, &b.entries)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return b, nil
	case err != nil:
		return nil, errorsmod.Wrapf(err, "failed to decode address book %s", path)
	}
	return b, nil
}

func (b *Book) Path() string {
	return b.path
}

// Get returns the address stored under alias on chainID.
func (b *Book) Get(chainID, alias string) (string, bool) {
	addr, ok := b.entries[chainID][alias]
	return addr, ok
}

// Insert stores address under alias, replacing any previous value.
func (b *Book) Insert(chainID, alias, address string) error {
	if alias == "" {
		return errorsmod.Wrapf(ErrInvalidAlias, "empty alias for %s on %s", address, chainID)
	}
	if _, _, err := bech32.DecodeAndConvert(address); err != nil {
		return errorsmod.Wrapf(ErrInvalidAddress, "%s: %s", address, err)
	}

	if b.entries[chainID] == nil {
		b.entries[chainID] = make(map[string]string)
	}
	b.entries[chainID][alias] = address
	return nil
}

// Aliases returns the sorted aliases known on chainID.
func (b *Book) Aliases(chainID string) []string {
	return slices.Sorted(maps.Keys(b.entries[chainID]))
}

// Save writes the book back to its path.
func (b *Book) Save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(b.path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(b.entries); err != nil {
		return errorsmod.Wrapf(err, "failed to encode address book %s", b.path)
	}
	return f.Sync()
}
