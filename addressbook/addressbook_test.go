package addressbook_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srdtrk/ibc-packet-tracker/addressbook"
)

const (
	chainID = "juno-1"

	counterAddr = "juno1qyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqsf7ar33"
	cw20Addr    = "juno1qgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyg6yye"
	minterAddr  = "juno1qvpsxqcrqvpsxqcrqvpsxqcrqvpsxqcrqvpsxqcrqvpsxqcrqvpsp6r7jm"
	wasmAddr    = "juno14hj2tavq8fpesdwxxcu44rty3hh90vhujrvcmstl4zr3txmfvw9skjuwg8"
)

func newBook(t *testing.T) *addressbook.Book {
	t.Helper()
	book, err := addressbook.Load(filepath.Join(t.TempDir(), "address_book.toml"))
	require.NoError(t, err)
	return book
}

func TestBookSaveLoad(t *testing.T) {
	book := newBook(t)
	require.NoError(t, book.Insert(chainID, "counter", counterAddr))
	require.NoError(t, book.Insert("osmosis-1", "pool", "osmo1pyysjzgfpyysjzgfpyysjzgfpyysjzgf4q8lct"))
	require.NoError(t, book.Save())

	loaded, err := addressbook.Load(book.Path())
	require.NoError(t, err)
	addr, ok := loaded.Get(chainID, "counter")
	require.True(t, ok)
	require.Equal(t, counterAddr, addr)
	require.Equal(t, []string{"pool"}, loaded.Aliases("osmosis-1"))

	_, ok = loaded.Get("osmosis-1", "counter")
	require.False(t, ok)
}

func TestInsertRejectsInvalidAddress(t *testing.T) {
	book := newBook(t)
	require.ErrorIs(t, book.Insert(chainID, "counter", "juno1notanaddress"), addressbook.ErrInvalidAddress)
	require.ErrorIs(t, book.Insert(chainID, "", counterAddr), addressbook.ErrInvalidAlias)
}

type scriptedResolver struct {
	addressbook.FixedResolver
	answers []addressbook.Resolution
	asked   []string
}

func (r *scriptedResolver) ResolveDuplicate(_, alias string) (addressbook.Resolution, error) {
	r.asked = append(r.asked, alias)
	if len(r.answers) == 0 {
		return addressbook.Unresolved, errors.New("no answer left")
	}
	next := r.answers[0]
	r.answers = r.answers[1:]
	return next, nil
}

func seeded(t *testing.T) *addressbook.Book {
	t.Helper()
	book := newBook(t)
	require.NoError(t, book.Insert(chainID, "counter", wasmAddr))
	require.NoError(t, book.Insert(chainID, "cw20", wasmAddr))
	require.NoError(t, book.Insert(chainID, "minter", wasmAddr))
	return book
}

var deployment = map[string]string{
	"counter": counterAddr,
	"cw20":    cw20Addr,
	"minter":  minterAddr,
}

func TestMergeSkipAllStopsAsking(t *testing.T) {
	book := seeded(t)
	resolver := &scriptedResolver{answers: []addressbook.Resolution{addressbook.Override, addressbook.SkipAll}}

	report, err := addressbook.Merge(book, chainID, deployment, addressbook.AliasKeep, resolver)
	require.NoError(t, err)
	require.Equal(t, []string{"counter", "cw20"}, resolver.asked)
	require.Equal(t, []string{"counter"}, report.Overridden)
	require.Equal(t, []string{"cw20", "minter"}, report.Skipped)

	addr, _ := book.Get(chainID, "counter")
	require.Equal(t, counterAddr, addr)
	addr, _ = book.Get(chainID, "minter")
	require.Equal(t, wasmAddr, addr)
}

func TestMergeOverrideAll(t *testing.T) {
	book := seeded(t)
	resolver := &scriptedResolver{answers: []addressbook.Resolution{addressbook.OverrideAll}}

	report, err := addressbook.Merge(book, chainID, deployment, addressbook.AliasKeep, resolver)
	require.NoError(t, err)
	require.Equal(t, []string{"counter"}, resolver.asked)
	require.Equal(t, []string{"counter", "cw20", "minter"}, report.Overridden)

	addr, _ := book.Get(chainID, "minter")
	require.Equal(t, minterAddr, addr)
}

func TestMergeRenameFindsFreeAlias(t *testing.T) {
	book := seeded(t)
	require.NoError(t, book.Insert(chainID, "counter-1", wasmAddr))

	report, err := addressbook.Merge(book, chainID, map[string]string{"counter": counterAddr}, addressbook.AliasKeep,
		addressbook.FixedResolver{Duplicate: addressbook.Rename})
	require.NoError(t, err)
	require.Equal(t, []string{"counter-2"}, report.Inserted)

	addr, _ := book.Get(chainID, "counter-2")
	require.Equal(t, counterAddr, addr)
	addr, _ = book.Get(chainID, "counter")
	require.Equal(t, wasmAddr, addr)
}

func TestMergeAliasRename(t *testing.T) {
	book := newBook(t)

	report, err := addressbook.Merge(book, chainID, deployment, addressbook.AliasRename,
		addressbook.FixedResolver{Aliases: map[string]string{"cw20": "token"}})
	require.NoError(t, err)
	require.Equal(t, []string{"counter", "token", "minter"}, report.Inserted)

	addr, ok := book.Get(chainID, "token")
	require.True(t, ok)
	require.Equal(t, cw20Addr, addr)
}

func TestMergeUnresolvedDuplicate(t *testing.T) {
	book := seeded(t)
	_, err := addressbook.Merge(book, chainID, deployment, addressbook.AliasKeep, addressbook.FixedResolver{})
	require.ErrorIs(t, err, addressbook.ErrUnresolved)
}

func TestParseStrategies(t *testing.T) {
	s, err := addressbook.ParseAliasStrategy("rename")
	require.NoError(t, err)
	require.Equal(t, addressbook.AliasRename, s)
	_, err = addressbook.ParseAliasStrategy("drop")
	require.ErrorIs(t, err, addressbook.ErrInvalidStrategy)

	for _, r := range []addressbook.Resolution{addressbook.Rename, addressbook.Skip, addressbook.Override, addressbook.SkipAll, addressbook.OverrideAll} {
		parsed, err := addressbook.ParseResolution(r.String())
		require.NoError(t, err)
		require.Equal(t, r, parsed)
	}
	_, err = addressbook.ParseResolution("unresolved")
	require.ErrorIs(t, err, addressbook.ErrInvalidStrategy)
}
