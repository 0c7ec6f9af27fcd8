package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomasrezac/photo-companion/internal/database"
	"github.com/tomasrezac/photo-companion/internal/database/mock"
)

func TestPersistClusters_CreatesGroups(t *testing.T) {
	store := database.NewGroupStore(mock.NewMockGroupStore())
	ctx := context.Background()

	outcome, err := store.PersistClusters(ctx, []database.ClusterInput{
		{
			Members:    []string{"a", "b"},
			PairScores: map[string]float64{database.PairKey("a", "b"): 0.9},
		},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Created != 1 {
		t.Errorf("expected 1 created group, got %d", outcome.Created)
	}

	groups, err := store.UnresolvedGroups(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 unresolved group, got %d", len(groups))
	}
	if groups[0].Representative() != "a" {
		t.Errorf("expected representative 'a', got %q", groups[0].Representative())
	}
}

func TestPersistClusters_DiscardsSingletons(t *testing.T) {
	writer := mock.NewMockGroupStore()
	store := database.NewGroupStore(writer)

	outcome, err := store.PersistClusters(context.Background(), []database.ClusterInput{
		{Members: []string{"only-one"}},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Discarded != 1 {
		t.Errorf("expected 1 discarded cluster, got %d", outcome.Discarded)
	}
	if writer.GroupCount() != 0 {
		t.Errorf("expected no persisted groups, got %d", writer.GroupCount())
	}
}

func TestPersistClusters_SkipsUnresolvableMembers(t *testing.T) {
	writer := mock.NewMockGroupStore()
	store := database.NewGroupStore(writer)

	// "b" was deleted from the library after the scan started; the cluster
	// collapses to a singleton and must be discarded.
	outcome, err := store.PersistClusters(context.Background(), []database.ClusterInput{
		{
			Members:    []string{"a", "b"},
			PairScores: map[string]float64{database.PairKey("a", "b"): 0.9},
		},
	}, func(uid string) bool { return uid != "b" })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Discarded != 1 {
		t.Errorf("expected discarded cluster, got %+v", outcome)
	}
	if writer.GroupCount() != 0 {
		t.Errorf("expected no persisted groups, got %d", writer.GroupCount())
	}
}

func TestPersistClusters_MergesOverlappingGroup(t *testing.T) {
	writer := mock.NewMockGroupStore()
	created := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	writer.AddGroup(database.DuplicateGroup{
		ID:         "existing",
		CreatedAt:  created,
		Members:    []string{"A", "B"},
		PairScores: map[string]float64{database.PairKey("A", "B"): 0.95},
	})

	store := database.NewGroupStore(writer)
	outcome, err := store.PersistClusters(context.Background(), []database.ClusterInput{
		{
			Members:    []string{"B", "C"},
			PairScores: map[string]float64{database.PairKey("B", "C"): 0.85},
		},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Merged != 1 || outcome.Created != 0 {
		t.Errorf("expected merge only, got %+v", outcome)
	}

	groups, err := store.UnresolvedGroups(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected a single merged group, got %d", len(groups))
	}

	g := groups[0]
	if len(g.Members) != 3 {
		t.Fatalf("expected members {A, B, C}, got %v", g.Members)
	}
	for _, m := range []string{"A", "B", "C"} {
		if !g.HasMember(m) {
			t.Errorf("expected member %s in merged group", m)
		}
	}
	if !g.CreatedAt.Equal(created) {
		t.Errorf("expected earlier creation date preserved, got %v", g.CreatedAt)
	}
	if len(g.PairScores) != 2 {
		t.Errorf("expected union of pair scores, got %v", g.PairScores)
	}
}

func TestPersistClusters_IdempotentRescan(t *testing.T) {
	writer := mock.NewMockGroupStore()
	store := database.NewGroupStore(writer)
	ctx := context.Background()

	clusters := []database.ClusterInput{
		{
			Members:    []string{"a", "b"},
			PairScores: map[string]float64{database.PairKey("a", "b"): 0.9},
		},
	}

	if _, err := store.PersistClusters(ctx, clusters, nil); err != nil {
		t.Fatalf("first persist: %v", err)
	}
	if _, err := store.PersistClusters(ctx, clusters, nil); err != nil {
		t.Fatalf("second persist: %v", err)
	}

	groups, err := store.UnresolvedGroups(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 {
		t.Errorf("expected re-scan to not create new groups, got %d", len(groups))
	}
	if len(groups[0].Members) != 2 {
		t.Errorf("expected members unchanged, got %v", groups[0].Members)
	}
}

func TestPersistClusters_ResolvedGroupNotMerged(t *testing.T) {
	writer := mock.NewMockGroupStore()
	resolvedAt := time.Now()
	writer.AddGroup(database.DuplicateGroup{
		ID:         "resolved",
		CreatedAt:  time.Now().Add(-time.Hour),
		Resolved:   true,
		ResolvedAt: &resolvedAt,
		Members:    []string{"A", "B"},
		PairScores: map[string]float64{},
	})

	store := database.NewGroupStore(writer)
	outcome, err := store.PersistClusters(context.Background(), []database.ClusterInput{
		{
			Members:    []string{"A", "B"},
			PairScores: map[string]float64{database.PairKey("A", "B"): 0.9},
		},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Created != 1 {
		t.Errorf("expected a fresh group since the old one is resolved, got %+v", outcome)
	}
}

func TestPersistClusters_BridgingClusterFoldsGroups(t *testing.T) {
	writer := mock.NewMockGroupStore()
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	writer.AddGroup(database.DuplicateGroup{
		ID: "g1", CreatedAt: older, Members: []string{"A", "B"},
		PairScores: map[string]float64{database.PairKey("A", "B"): 0.9},
	})
	writer.AddGroup(database.DuplicateGroup{
		ID: "g2", CreatedAt: newer, Members: []string{"C", "D"},
		PairScores: map[string]float64{database.PairKey("C", "D"): 0.8},
	})

	store := database.NewGroupStore(writer)
	_, err := store.PersistClusters(context.Background(), []database.ClusterInput{
		{
			Members:    []string{"B", "C"},
			PairScores: map[string]float64{database.PairKey("B", "C"): 0.7},
		},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	groups, err := store.UnresolvedGroups(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected the bridged groups folded into one, got %d", len(groups))
	}
	g := groups[0]
	if g.ID != "g1" {
		t.Errorf("expected oldest group to win, got %s", g.ID)
	}
	if len(g.Members) != 4 {
		t.Errorf("expected members {A,B,C,D}, got %v", g.Members)
	}
	if !g.CreatedAt.Equal(older) {
		t.Errorf("expected oldest creation date, got %v", g.CreatedAt)
	}

	// The absorbed group survives for audit, marked resolved.
	absorbed, err := store.GetGroup(context.Background(), "g2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if absorbed == nil || !absorbed.Resolved {
		t.Error("expected absorbed group retained and marked resolved")
	}
}

func TestMarkResolved(t *testing.T) {
	writer := mock.NewMockGroupStore()
	writer.AddGroup(database.DuplicateGroup{
		ID: "g1", CreatedAt: time.Now(), Members: []string{"a", "b"},
		PairScores: map[string]float64{},
	})

	store := database.NewGroupStore(writer)
	if err := store.MarkResolved(context.Background(), "g1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g, _ := store.GetGroup(context.Background(), "g1")
	if !g.Resolved || g.ResolvedAt == nil {
		t.Error("expected group resolved with timestamp")
	}

	groups, _ := store.UnresolvedGroups(context.Background())
	if len(groups) != 0 {
		t.Errorf("expected resolved group hidden from unresolved query, got %d", len(groups))
	}

	// Resolving twice is a no-op, not an error.
	if err := store.MarkResolved(context.Background(), "g1"); err != nil {
		t.Errorf("expected idempotent resolve, got %v", err)
	}
}

func TestMarkResolved_UnknownGroup(t *testing.T) {
	store := database.NewGroupStore(mock.NewMockGroupStore())
	if err := store.MarkResolved(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown group")
	}
}

func TestRemoveMember(t *testing.T) {
	writer := mock.NewMockGroupStore()
	writer.AddGroup(database.DuplicateGroup{
		ID: "g1", CreatedAt: time.Now(), Members: []string{"a", "b", "c"},
		PairScores: map[string]float64{
			database.PairKey("a", "b"): 0.9,
			database.PairKey("a", "c"): 0.8,
			database.PairKey("b", "c"): 0.7,
		},
	})

	store := database.NewGroupStore(writer)
	if err := store.RemoveMember(context.Background(), "g1", "c"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g, _ := store.GetGroup(context.Background(), "g1")
	if g.Resolved {
		t.Error("expected group with 2 remaining members to stay unresolved")
	}
	if len(g.Members) != 2 || g.HasMember("c") {
		t.Errorf("expected member c removed, got %v", g.Members)
	}
	if len(g.PairScores) != 1 {
		t.Errorf("expected scores touching c dropped, got %v", g.PairScores)
	}
}

func TestRemoveMember_CollapsesToResolved(t *testing.T) {
	writer := mock.NewMockGroupStore()
	writer.AddGroup(database.DuplicateGroup{
		ID: "g1", CreatedAt: time.Now(), Members: []string{"a", "b"},
		PairScores: map[string]float64{database.PairKey("a", "b"): 0.9},
	})

	store := database.NewGroupStore(writer)
	if err := store.RemoveMember(context.Background(), "g1", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g, _ := store.GetGroup(context.Background(), "g1")
	if !g.Resolved {
		t.Error("expected group collapsed to resolved at 1 member")
	}
	if len(g.Members) != 1 {
		t.Errorf("expected 1 remaining member, got %v", g.Members)
	}
}

func TestRemoveMember_NotAMember(t *testing.T) {
	writer := mock.NewMockGroupStore()
	writer.AddGroup(database.DuplicateGroup{
		ID: "g1", CreatedAt: time.Now(), Members: []string{"a", "b"},
		PairScores: map[string]float64{},
	})

	store := database.NewGroupStore(writer)
	if err := store.RemoveMember(context.Background(), "g1", "zz"); err == nil {
		t.Error("expected error for non-member removal")
	}
}

func TestPersistClusters_PersistenceErrorSurfaced(t *testing.T) {
	writer := mock.NewMockGroupStore()
	writer.SaveError = errors.New("disk full")

	store := database.NewGroupStore(writer)
	_, err := store.PersistClusters(context.Background(), []database.ClusterInput{
		{
			Members:    []string{"a", "b"},
			PairScores: map[string]float64{database.PairKey("a", "b"): 0.9},
		},
	}, nil)

	var perr *database.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
}
