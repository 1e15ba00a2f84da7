package state

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	errorsmod "cosmossdk.io/errors"
)

const (
	// DefaultDeployment is the deployment id used when none is given.
	DefaultDeployment = "default"

	codeIDsKey = "code_ids"
)

// document is the on-disk layout: chain name, chain id, then either the code
// ids or a deployment id mapping contract ids to addresses.
type document map[string]map[string]map[string]json.RawMessage

var _ Store = (*FileState)(nil)

// FileState is a Store backed by a JSON state file shared between chains and
// deployments. Changes stay in memory until Flush.
type FileState struct {
	*LocalState

	path         string
	chainName    string
	chainID      string
	deploymentID string
	doc          document
}

// LoadFileState reads the deployment of chainName/chainID from path. A missing
// file yields an empty state.
func LoadFileState(path, chainName, chainID, deploymentID string) (*FileState, error) {
	if deploymentID == "" {
		deploymentID = DefaultDeployment
	}
	if deploymentID == codeIDsKey {
		return nil, errorsmod.Wrapf(ErrCorruptState, "%q is reserved", codeIDsKey)
	}

	doc, err := readDocument(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		doc = document{}
	case err != nil:
		return nil, err
	}

	s := &FileState{
		LocalState:   NewLocalState(),
		path:         path,
		chainName:    chainName,
		chainID:      chainID,
		deploymentID: deploymentID,
		doc:          doc,
	}

	entry := doc[chainName][chainID]
	if raw, ok := entry[codeIDsKey]; ok {
		if err := json.Unmarshal(raw, &s.codeIDs); err != nil {
			return nil, errorsmod.Wrapf(ErrCorruptState, "%s.%s.%s: %s", chainName, chainID, codeIDsKey, err)
		}
	}
	if raw, ok := entry[deploymentID]; ok {
		if err := json.Unmarshal(raw, &s.addresses); err != nil {
			return nil, errorsmod.Wrapf(ErrCorruptState, "%s.%s.%s: %s", chainName, chainID, deploymentID, err)
		}
	}
	if s.codeIDs == nil {
		s.codeIDs = make(map[string]uint64)
	}
	if s.addresses == nil {
		s.addresses = make(map[string]string)
	}
	return s, nil
}

func (s *FileState) Path() string {
	return s.path
}

// Flush writes the state back, keeping the entries of other chains and deployments.
func (s *FileState) Flush() error {
	codeIDs, err := json.Marshal(s.codeIDs)
	if err != nil {
		return err
	}
	addresses, err := json.Marshal(s.addresses)
	if err != nil {
		return err
	}

	if s.doc[s.chainName] == nil {
		s.doc[s.chainName] = make(map[string]map[string]json.RawMessage)
	}
	if s.doc[s.chainName][s.chainID] == nil {
		s.doc[s.chainName][s.chainID] = make(map[string]json.RawMessage)
	}
	s.doc[s.chainName][s.chainID][codeIDsKey] = codeIDs
	s.doc[s.chainName][s.chainID][s.deploymentID] = addresses

	bz, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, bz)
}

// ReadDeployment returns the contract addresses of one deployment without
// creating anything. Every level of the file must exist.
func ReadDeployment(path, chainName, chainID, deploymentID string) (map[string]string, error) {
	if deploymentID == "" {
		deploymentID = DefaultDeployment
	}

	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	chainState, ok := doc[chainName]
	if !ok {
		return nil, errorsmod.Wrapf(ErrEmptyState, "State is empty for %s", chainName)
	}
	chainIDState, ok := chainState[chainID]
	if !ok {
		return nil, errorsmod.Wrapf(ErrEmptyState, "State is empty for %s.%s", chainName, chainID)
	}
	raw, ok := chainIDState[deploymentID]
	if !ok {
		return nil, errorsmod.Wrapf(ErrEmptyState, "State is empty for %s.%s.%s", chainName, chainID, deploymentID)
	}

	var contracts map[string]string
	if err := json.Unmarshal(raw, &contracts); err != nil {
		return nil, errorsmod.Wrapf(ErrCorruptState, "%s.%s.%s: %s", chainName, chainID, deploymentID, err)
	}
	return contracts, nil
}

func readDocument(path string) (document, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(bz, &doc); err != nil {
		return nil, errorsmod.Wrapf(ErrCorruptState, "%s: %s", path, err)
	}
	if doc == nil {
		doc = document{}
	}
	return doc, nil
}

func writeFileAtomic(path string, bz []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(bz); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
