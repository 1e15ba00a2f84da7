package tracker

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/srdtrk/ibc-packet-tracker/chain"
)

var _ LoggedState[ContractState, ContractStateDiff] = ContractState{}

// ContractState is the IBC footprint of a single port over a connection: its
// open channels and the packets committed and acknowledged on each of them.
// Channels without packets are not present in the packet maps.
type ContractState struct {
	ConnectionID string
	PortID       string

	ChannelIDs          map[string]struct{}
	CommittedPackets    map[string]map[uint64]struct{}
	AcknowledgedPackets map[string]map[uint64]struct{}
}

// ContractStateDiff lists what was added and removed between two states.
type ContractStateDiff struct {
	AddedChannels   []string
	RemovedChannels []string

	AddedCommitments   map[string][]uint64
	RemovedCommitments map[string][]uint64

	AddedAcks   map[string][]uint64
	RemovedAcks map[string][]uint64
}

// IsEmpty reports whether the diff carries no change.
func (d ContractStateDiff) IsEmpty() bool {
	return len(d.AddedChannels) == 0 && len(d.RemovedChannels) == 0 &&
		len(d.AddedCommitments) == 0 && len(d.RemovedCommitments) == 0 &&
		len(d.AddedAcks) == 0 && len(d.RemovedAcks) == 0
}

// NewContractState returns an empty state for portID over connectionID.
func NewContractState(connectionID, portID string) ContractState {
	return ContractState{
		ConnectionID:        connectionID,
		PortID:              portID,
		ChannelIDs:          map[string]struct{}{},
		CommittedPackets:    map[string]map[uint64]struct{}{},
		AcknowledgedPackets: map[string]map[uint64]struct{}{},
	}
}

func (s ContractState) Identity() ContractState {
	return NewContractState(s.ConnectionID, s.PortID)
}

func (s ContractState) Equal(other ContractState) bool {
	return s.ConnectionID == other.ConnectionID &&
		s.PortID == other.PortID &&
		maps.Equal(s.ChannelIDs, other.ChannelIDs) &&
		packetsEqual(s.CommittedPackets, other.CommittedPackets) &&
		packetsEqual(s.AcknowledgedPackets, other.AcknowledgedPackets)
}

func (s ContractState) Diff(other ContractState) ContractStateDiff {
	return ContractStateDiff{
		AddedChannels:      setMinus(other.ChannelIDs, s.ChannelIDs),
		RemovedChannels:    setMinus(s.ChannelIDs, other.ChannelIDs),
		AddedCommitments:   packetsMinus(other.CommittedPackets, s.CommittedPackets),
		RemovedCommitments: packetsMinus(s.CommittedPackets, other.CommittedPackets),
		AddedAcks:          packetsMinus(other.AcknowledgedPackets, s.AcknowledgedPackets),
		RemovedAcks:        packetsMinus(s.AcknowledgedPackets, other.AcknowledgedPackets),
	}
}

func (s ContractState) Apply(diff ContractStateDiff) ContractState {
	next := s.clone()
	for _, id := range diff.AddedChannels {
		next.ChannelIDs[id] = struct{}{}
	}
	for _, id := range diff.RemovedChannels {
		delete(next.ChannelIDs, id)
	}
	applyPackets(next.CommittedPackets, diff.AddedCommitments, diff.RemovedCommitments)
	applyPackets(next.AcknowledgedPackets, diff.AddedAcks, diff.RemovedAcks)
	return next
}

// String renders the non-empty parts of the state in a stable order.
func (s ContractState) String() string {
	var parts []string
	if len(s.ChannelIDs) > 0 {
		parts = append(parts, fmt.Sprintf("new_channel(s): [%s]", strings.Join(slices.Sorted(maps.Keys(s.ChannelIDs)), ", ")))
	}
	if len(s.CommittedPackets) > 0 {
		parts = append(parts, "received_packet(s): "+formatPackets(s.CommittedPackets))
	}
	if len(s.AcknowledgedPackets) > 0 {
		parts = append(parts, "acknowledged_packet(s): "+formatPackets(s.AcknowledgedPackets))
	}
	return strings.Join(parts, " ")
}

// NewState reads the open channels of the port over the connection, then the
// commitments of every channel and the acknowledgements among them.
func (s ContractState) NewState(ctx context.Context, client chain.Client) (ContractState, error) {
	channels, err := client.ConnectionChannels(ctx, s.ConnectionID)
	if err != nil {
		return ContractState{}, err
	}

	next := s.Identity()
	for _, ch := range channels {
		if !ch.IsOpen() || ch.PortID != s.PortID {
			continue
		}
		next.ChannelIDs[ch.ChannelID] = struct{}{}
	}

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	for channelID := range next.ChannelIDs {
		eg.Go(func() error {
			commitments, err := client.PacketCommitments(egCtx, s.PortID, channelID)
			if err != nil {
				return fmt.Errorf("packet commitments on %s/%s: %w", s.PortID, channelID, err)
			}
			if len(commitments) == 0 {
				return nil
			}

			acks, err := client.PacketAcknowledgements(egCtx, s.PortID, channelID, commitments)
			if err != nil {
				return fmt.Errorf("packet acknowledgements on %s/%s: %w", s.PortID, channelID, err)
			}

			mu.Lock()
			defer mu.Unlock()
			next.CommittedPackets[channelID] = toSet(commitments)
			if len(acks) > 0 {
				next.AcknowledgedPackets[channelID] = toSet(acks)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return ContractState{}, err
	}
	return next, nil
}

func (s ContractState) clone() ContractState {
	next := s.Identity()
	maps.Copy(next.ChannelIDs, s.ChannelIDs)
	for id, seqs := range s.CommittedPackets {
		next.CommittedPackets[id] = maps.Clone(seqs)
	}
	for id, seqs := range s.AcknowledgedPackets {
		next.AcknowledgedPackets[id] = maps.Clone(seqs)
	}
	return next
}

func toSet(seqs []uint64) map[uint64]struct{} {
	set := make(map[uint64]struct{}, len(seqs))
	for _, seq := range seqs {
		set[seq] = struct{}{}
	}
	return set
}

// setMinus returns the sorted keys of a missing from b.
func setMinus[K cmp.Ordered](a, b map[K]struct{}) []K {
	var out []K
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

func packetsEqual(a, b map[string]map[uint64]struct{}) bool {
	return maps.EqualFunc(a, b, func(x, y map[uint64]struct{}) bool { return maps.Equal(x, y) })
}

func packetsMinus(a, b map[string]map[uint64]struct{}) map[string][]uint64 {
	out := map[string][]uint64{}
	for id, seqs := range a {
		if missing := setMinus(seqs, b[id]); len(missing) > 0 {
			out[id] = missing
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func applyPackets(dst map[string]map[uint64]struct{}, added, removed map[string][]uint64) {
	for id, seqs := range added {
		set, ok := dst[id]
		if !ok {
			set = map[uint64]struct{}{}
			dst[id] = set
		}
		for _, seq := range seqs {
			set[seq] = struct{}{}
		}
	}
	for id, seqs := range removed {
		set := dst[id]
		for _, seq := range seqs {
			delete(set, seq)
		}
		if len(set) == 0 {
			delete(dst, id)
		}
	}
}

func formatPackets(packets map[string]map[uint64]struct{}) string {
	entries := make([]string, 0, len(packets))
	for _, id := range slices.Sorted(maps.Keys(packets)) {
		seqs := slices.Sorted(maps.Keys(packets[id]))
		nums := make([]string, len(seqs))
		for i, seq := range seqs {
			nums[i] = fmt.Sprint(seq)
		}
		entries = append(entries, fmt.Sprintf("%s: [%s]", id, strings.Join(nums, ", ")))
	}
	return "{" + strings.Join(entries, ", ") + "}"
}
