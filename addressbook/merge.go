package addressbook

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	errorsmod "cosmossdk.io/errors"
)

// maxRenameAttempts bounds how often a resolver is asked for a free alias.
const maxRenameAttempts = 100

// AliasStrategy chooses the alias a contract id is first stored under.
type AliasStrategy int

const (
	// AliasKeep uses the contract id as alias.
	AliasKeep AliasStrategy = iota
	// AliasRename asks the resolver for an alias.
	AliasRename
)

func (s AliasStrategy) String() string {
	switch s {
	case AliasKeep:
		return "keep"
	case AliasRename:
		return "rename"
	default:
		return fmt.Sprintf("AliasStrategy(%d)", int(s))
	}
}

func ParseAliasStrategy(s string) (AliasStrategy, error) {
	switch s {
	case "keep":
		return AliasKeep, nil
	case "rename":
		return AliasRename, nil
	default:
		return 0, errorsmod.Wrapf(ErrInvalidStrategy, "incorrect alias name strategy %q", s)
	}
}

// Resolution decides what happens to a contract whose alias already exists.
type Resolution int

const (
	Unresolved Resolution = iota
	Rename
	Skip
	Override
	// SkipAll skips this and every later duplicate of the merge.
	SkipAll
	// OverrideAll overrides this and every later duplicate of the merge.
	OverrideAll
)

func (r Resolution) String() string {
	switch r {
	case Unresolved:
		return "unresolved"
	case Rename:
		return "rename"
	case Skip:
		return "skip"
	case Override:
		return "override"
	case SkipAll:
		return "skip-all"
	case OverrideAll:
		return "override-all"
	default:
		return fmt.Sprintf("Resolution(%d)", int(r))
	}
}

func ParseResolution(s string) (Resolution, error) {
	for r := Rename; r <= OverrideAll; r++ {
		if r.String() == s {
			return r, nil
		}
	}
	return Unresolved, errorsmod.Wrapf(ErrInvalidStrategy, "unknown duplicate resolution %q", s)
}

// Resolver answers the questions a merge asks. Implementations may prompt a user.
type Resolver interface {
	// Alias returns the alias to store contractID under with AliasRename.
	Alias(contractID string) (string, error)
	// ResolveDuplicate is asked once per duplicate until a SkipAll or OverrideAll answer.
	ResolveDuplicate(chainID, alias string) (Resolution, error)
	// RenameAlias returns a new alias for contractID after taken was found in use.
	RenameAlias(contractID, taken string) (string, error)
}

// MergeReport lists the aliases touched by a merge.
type MergeReport struct {
	Inserted   []string
	Overridden []string
	Skipped    []string
}

// Merge stores contracts (contract id to address) in the book under chainID.
// Contracts are processed in contract id order.
func Merge(book *Book, chainID string, contracts map[string]string, strategy AliasStrategy, resolver Resolver) (MergeReport, error) {
	var (
		report MergeReport
		global = Unresolved
	)

	for _, contractID := range slices.Sorted(maps.Keys(contracts)) {
		address := contracts[contractID]

		alias := contractID
		if strategy == AliasRename {
			var err error
			if alias, err = resolver.Alias(contractID); err != nil {
				return report, err
			}
		}

		_, duplicate := book.Get(chainID, alias)
		overridden := false
		if duplicate {
			resolution := global
			switch resolution {
			case SkipAll:
				resolution = Skip
			case OverrideAll:
				resolution = Override
			default:
				var err error
				if resolution, err = resolver.ResolveDuplicate(chainID, alias); err != nil {
					return report, err
				}
			}

			switch resolution {
			case Rename:
				var err error
				if alias, err = renameUntilFree(book, chainID, contractID, alias, resolver); err != nil {
					return report, err
				}
			case Skip:
				report.Skipped = append(report.Skipped, alias)
				continue
			case SkipAll:
				global = SkipAll
				report.Skipped = append(report.Skipped, alias)
				continue
			case Override:
				overridden = true
			case OverrideAll:
				global = OverrideAll
				overridden = true
			default:
				return report, errorsmod.Wrapf(ErrUnresolved, "%s on %s", alias, chainID)
			}
		}

		if err := book.Insert(chainID, alias, address); err != nil {
			return report, err
		}
		if overridden {
			report.Overridden = append(report.Overridden, alias)
		} else {
			report.Inserted = append(report.Inserted, alias)
		}
	}
	return report, nil
}

func renameUntilFree(book *Book, chainID, contractID, taken string, resolver Resolver) (string, error) {
	alias := taken
	for range maxRenameAttempts {
		if _, used := book.Get(chainID, alias); !used {
			return alias, nil
		}

		var err error
		if alias, err = resolver.RenameAlias(contractID, alias); err != nil {
			return "", err
		}
	}
	return "", errorsmod.Wrapf(ErrAliasTaken, "no free alias for %s on %s after %d attempts", contractID, chainID, maxRenameAttempts)
}

var _ Resolver = FixedResolver{}

// FixedResolver answers without interaction. Renamed aliases get a numeric suffix.
type FixedResolver struct {
	Duplicate Resolution
	// Aliases maps contract ids to aliases for AliasRename. Missing ids keep their contract id.
	Aliases map[string]string
}

func (r FixedResolver) Alias(contractID string) (string, error) {
	if alias, ok := r.Aliases[contractID]; ok {
		return alias, nil
	}
	return contractID, nil
}

func (r FixedResolver) ResolveDuplicate(string, string) (Resolution, error) {
	return r.Duplicate, nil
}

func (r FixedResolver) RenameAlias(contractID, taken string) (string, error) {
	n := 0
	if suffix, ok := strings.CutPrefix(taken, contractID+"-"); ok {
		n, _ = strconv.Atoi(suffix)
	}
	return fmt.Sprintf("%s-%d", contractID, n+1), nil
}
