package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ClusterInput is one detected cluster handed over by the scanner: member
// photo UIDs in scan insertion order plus pair key -> similarity scores.
type ClusterInput struct {
	Members    []string
	PairScores map[string]float64
}

// PersistOutcome summarizes what happened to the clusters of one scan.
type PersistOutcome struct {
	Created   int // new groups inserted
	Merged    int // clusters folded into existing unresolved groups
	Discarded int // clusters that fell below 2 resolvable members
}

// GroupStore applies the persist and merge semantics for duplicate groups on
// top of a GroupWriter. All mutations go through this type so the single
// writer policy holds: one scan in flight, one mutation authority.
type GroupStore struct {
	writer GroupWriter
}

// NewGroupStore creates a group store backed by the given writer.
func NewGroupStore(w GroupWriter) *GroupStore {
	return &GroupStore{writer: w}
}

// PersistClusters stores the clusters of one scan, merging each cluster into
// existing unresolved groups that share a member. resolvable filters members
// that no longer exist in the library (deleted since the scan started); pass
// nil to accept all members. Clusters reduced below 2 members are discarded.
//
// Merge keeps the earliest creation date. When a cluster bridges several
// existing unresolved groups, they are all folded into the oldest one and the
// absorbed groups are marked resolved (never deleted, so the audit trail
// survives).
func (s *GroupStore) PersistClusters(ctx context.Context, clusters []ClusterInput, resolvable func(photoUID string) bool) (*PersistOutcome, error) {
	unresolved, err := s.writer.UnresolvedGroups(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "loading unresolved groups", Err: err}
	}

	outcome := &PersistOutcome{}

	for _, cluster := range clusters {
		members := filterMembers(cluster.Members, resolvable)
		if len(members) < 2 {
			outcome.Discarded++
			continue
		}
		scores := filterScores(cluster.PairScores, members)

		overlaps := overlappingGroups(unresolved, members)

		if len(overlaps) == 0 {
			g := &DuplicateGroup{
				ID:         uuid.NewString(),
				CreatedAt:  time.Now().UTC(),
				Members:    members,
				PairScores: scores,
			}
			if err := s.writer.SaveGroup(ctx, g); err != nil {
				return nil, &PersistenceError{Op: "saving group", Err: err}
			}
			unresolved = append(unresolved, *g)
			outcome.Created++
			continue
		}

		if err := s.mergeCluster(ctx, unresolved, overlaps, members, scores); err != nil {
			return nil, err
		}
		outcome.Merged++
	}

	return outcome, nil
}

// mergeCluster folds the cluster and all overlapping groups into the oldest
// overlapping group. overlaps holds indices into unresolved, which is updated
// in place so later clusters of the same scan see the merged state.
func (s *GroupStore) mergeCluster(ctx context.Context, unresolved []DuplicateGroup, overlaps []int, members []string, scores map[string]float64) error {
	// Oldest group wins; sorting by creation keeps the merge deterministic.
	sort.Slice(overlaps, func(i, j int) bool {
		return unresolved[overlaps[i]].CreatedAt.Before(unresolved[overlaps[j]].CreatedAt)
	})

	target := &unresolved[overlaps[0]]

	for _, idx := range overlaps[1:] {
		absorbed := &unresolved[idx]
		target.Members = unionMembers(target.Members, absorbed.Members)
		for k, v := range absorbed.PairScores {
			target.PairScores[k] = v
		}
		now := time.Now().UTC()
		absorbed.Resolved = true
		absorbed.ResolvedAt = &now
		if err := s.writer.UpdateGroup(ctx, absorbed); err != nil {
			return &PersistenceError{Op: "absorbing group", Err: err}
		}
	}

	target.Members = unionMembers(target.Members, members)
	if target.PairScores == nil {
		target.PairScores = make(map[string]float64, len(scores))
	}
	for k, v := range scores {
		target.PairScores[k] = v
	}

	if err := s.writer.UpdateGroup(ctx, target); err != nil {
		return &PersistenceError{Op: "merging group", Err: err}
	}
	return nil
}

// MarkResolved marks a group as handled by the user. This is the terminal
// state: the group disappears from unresolved queries but is never deleted.
func (s *GroupStore) MarkResolved(ctx context.Context, id string) error {
	g, err := s.writer.GetGroup(ctx, id)
	if err != nil {
		return &PersistenceError{Op: "loading group", Err: err}
	}
	if g == nil {
		return fmt.Errorf("group %s not found", id)
	}
	if g.Resolved {
		return nil
	}
	now := time.Now().UTC()
	g.Resolved = true
	g.ResolvedAt = &now
	if err := s.writer.UpdateGroup(ctx, g); err != nil {
		return &PersistenceError{Op: "resolving group", Err: err}
	}
	return nil
}

// RemoveMember detaches one photo from a group, dropping its pair scores.
// A group reduced to one or zero members is collapsed to resolved.
func (s *GroupStore) RemoveMember(ctx context.Context, id string, photoUID string) error {
	g, err := s.writer.GetGroup(ctx, id)
	if err != nil {
		return &PersistenceError{Op: "loading group", Err: err}
	}
	if g == nil {
		return fmt.Errorf("group %s not found", id)
	}
	if !g.HasMember(photoUID) {
		return fmt.Errorf("photo %s is not a member of group %s", photoUID, id)
	}

	kept := make([]string, 0, len(g.Members)-1)
	for _, m := range g.Members {
		if m != photoUID {
			kept = append(kept, m)
		}
	}
	g.Members = kept

	for key := range g.PairScores {
		a, b := SplitPairKey(key)
		if a == photoUID || b == photoUID {
			delete(g.PairScores, key)
		}
	}

	if len(g.Members) <= 1 {
		now := time.Now().UTC()
		g.Resolved = true
		g.ResolvedAt = &now
	}

	if err := s.writer.UpdateGroup(ctx, g); err != nil {
		return &PersistenceError{Op: "removing member", Err: err}
	}
	return nil
}

// UnresolvedGroups passes through to the reader.
func (s *GroupStore) UnresolvedGroups(ctx context.Context) ([]DuplicateGroup, error) {
	return s.writer.UnresolvedGroups(ctx)
}

// GetGroup passes through to the reader.
func (s *GroupStore) GetGroup(ctx context.Context, id string) (*DuplicateGroup, error) {
	return s.writer.GetGroup(ctx, id)
}

func filterMembers(members []string, resolvable func(string) bool) []string {
	if resolvable == nil {
		return append([]string(nil), members...)
	}
	kept := make([]string, 0, len(members))
	for _, m := range members {
		if resolvable(m) {
			kept = append(kept, m)
		}
	}
	return kept
}

// filterScores keeps only scores whose both endpoints survived member filtering.
func filterScores(scores map[string]float64, members []string) map[string]float64 {
	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}
	kept := make(map[string]float64, len(scores))
	for key, score := range scores {
		a, b := SplitPairKey(key)
		if memberSet[a] && memberSet[b] {
			kept[key] = score
		}
	}
	return kept
}

// overlappingGroups returns indices of unresolved groups sharing any member
// with the cluster.
func overlappingGroups(unresolved []DuplicateGroup, members []string) []int {
	var overlaps []int
	for i := range unresolved {
		if unresolved[i].Resolved {
			continue
		}
		for _, m := range members {
			if unresolved[i].HasMember(m) {
				overlaps = append(overlaps, i)
				break
			}
		}
	}
	return overlaps
}

// unionMembers appends the members of extra not already present, preserving
// the existing insertion order so the representative stays stable.
func unionMembers(existing, extra []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, m := range existing {
		seen[m] = true
	}
	for _, m := range extra {
		if !seen[m] {
			existing = append(existing, m)
			seen[m] = true
		}
	}
	return existing
}
