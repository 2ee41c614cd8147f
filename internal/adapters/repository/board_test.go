package repository

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"

	"github.com/okian/surgitrack/internal/domain/model"
)

func entry(user, task int64, score, secs int) model.LeaderboardEntry {
	return model.LeaderboardEntry{UserID: user, TaskID: task, Score: score, TimeSeconds: secs, AttemptID: user*1000 + task}
}

func mustUpdate(t *testing.T, b *Board, e model.LeaderboardEntry) bool {
	t.Helper()
	updated, err := b.UpdateBest(context.Background(), e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return updated
}

func TestBoard_BasicOperations(t *testing.T) {
	ctx := context.Background()
	b := NewBoard()

	if count := b.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	if !mustUpdate(t, b, entry(1, 1, 85, 120)) {
		t.Error("expected first update to succeed")
	}
	if count := b.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	e, err := b.Rank(ctx, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Rank != 1 || e.Score != 85 || e.TimeSeconds != 120 {
		t.Errorf("unexpected entry %+v", e)
	}

	entries, err := b.TopN(ctx, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Rank != 1 {
		t.Errorf("unexpected top entries %+v", entries)
	}
}

func TestBoard_ImprovementRules(t *testing.T) {
	ctx := context.Background()
	b := NewBoard()
	mustUpdate(t, b, entry(1, 1, 80, 200))

	cases := []struct {
		name    string
		e       model.LeaderboardEntry
		updated bool
	}{
		{"lower score", entry(1, 1, 70, 100), false},
		{"same score slower", entry(1, 1, 80, 250), false},
		{"same score same time", entry(1, 1, 80, 200), false},
		{"same score faster", entry(1, 1, 80, 150), true},
		{"higher score slower", entry(1, 1, 90, 400), true},
	}
	for _, tc := range cases {
		if got := mustUpdate(t, b, tc.e); got != tc.updated {
			t.Errorf("%s: expected updated=%v, got %v", tc.name, tc.updated, got)
		}
	}

	e, err := b.Rank(ctx, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Score != 90 || e.TimeSeconds != 400 {
		t.Errorf("expected best (90, 400), got (%d, %d)", e.Score, e.TimeSeconds)
	}
	if count := b.Count(ctx); count != 1 {
		t.Errorf("a pair must hold one entry, got %d", count)
	}
}

func TestBoard_OrderingAndTies(t *testing.T) {
	ctx := context.Background()
	b := NewBoard()

	for _, e := range []model.LeaderboardEntry{
		entry(3, 1, 90, 100),
		entry(1, 1, 90, 100),
		entry(2, 1, 95, 300),
		entry(1, 2, 90, 90),
		entry(4, 1, 60, 50),
		entry(1, 3, 90, 100),
	} {
		mustUpdate(t, b, e)
	}

	entries, err := b.TopN(ctx, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []struct {
		user, task int64
		rank       int
	}{
		{2, 1, 1}, // highest score
		{1, 2, 2}, // 90 with the best time
		{1, 1, 3}, // 90/100 tie: user asc, then task asc
		{1, 3, 3},
		{3, 1, 3},
		{4, 1, 6}, // competition ranking skips
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, w := range want {
		got := entries[i]
		if got.UserID != w.user || got.TaskID != w.task || got.Rank != w.rank {
			t.Errorf("position %d: expected (%d,%d) rank %d, got (%d,%d) rank %d",
				i, w.user, w.task, w.rank, got.UserID, got.TaskID, got.Rank)
		}
	}

	for _, w := range want {
		e, err := b.Rank(ctx, w.user, w.task)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if e.Rank != w.rank {
			t.Errorf("Rank(%d,%d): expected %d, got %d", w.user, w.task, w.rank, e.Rank)
		}
	}
}

func TestBoard_Filters(t *testing.T) {
	ctx := context.Background()
	b := NewBoard()
	for _, e := range []model.LeaderboardEntry{
		entry(1, 1, 100, 60),
		entry(2, 1, 90, 60),
		entry(3, 2, 95, 60),
		entry(2, 2, 70, 60),
	} {
		mustUpdate(t, b, e)
	}

	byTask, err := b.TopN(ctx, 10, func(e model.LeaderboardEntry) bool { return e.TaskID == 2 })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byTask) != 2 || byTask[0].UserID != 3 || byTask[1].UserID != 2 {
		t.Errorf("unexpected task filter result %+v", byTask)
	}
	if byTask[0].Rank != 1 || byTask[1].Rank != 2 {
		t.Errorf("filtered ranks must restart at 1, got %d, %d", byTask[0].Rank, byTask[1].Rank)
	}

	members := map[int64]bool{2: true}
	byTeam, err := b.TopN(ctx, 1, func(e model.LeaderboardEntry) bool { return members[e.UserID] })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byTeam) != 1 || byTeam[0].UserID != 2 || byTeam[0].TaskID != 1 {
		t.Errorf("unexpected team filter result %+v", byTeam)
	}
}

func TestBoard_EdgeCases(t *testing.T) {
	ctx := context.Background()
	b := NewBoard()

	if _, err := b.TopN(ctx, 0, nil); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := b.TopN(ctx, -5, nil); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := b.Rank(ctx, 42, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	entries, err := b.TopN(ctx, 3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty board, got %d entries", len(entries))
	}
}

func TestBoard_Load(t *testing.T) {
	ctx := context.Background()
	b := NewBoard()
	mustUpdate(t, b, entry(9, 9, 10, 10))

	err := b.Load(ctx, []model.LeaderboardEntry{
		entry(1, 1, 50, 100),
		entry(1, 1, 60, 100),
		entry(2, 1, 40, 100),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count := b.Count(ctx); count != 2 {
		t.Errorf("expected 2 pairs, got %d", count)
	}
	if _, err := b.Rank(ctx, 9, 9); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load must drop previous contents, got %v", err)
	}
	e, _ := b.Rank(ctx, 1, 1)
	if e.Score != 60 {
		t.Errorf("expected best score 60, got %d", e.Score)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := b.Load(cancelled, []model.LeaderboardEntry{entry(1, 1, 1, 1)}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// referenceBoard ranks entries by brute force.
func referenceBoard(best map[pairKey]model.LeaderboardEntry) []model.LeaderboardEntry {
	out := make([]model.LeaderboardEntry, 0, len(best))
	for _, e := range best {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return less(keyOf(out[i]), keyOf(out[j])) })
	for i := range out {
		out[i].Rank = 1
		for j := range out {
			if better(out[j].Score, out[j].TimeSeconds, out[i].Score, out[i].TimeSeconds) {
				out[i].Rank++
			}
		}
	}
	return out
}

func TestBoard_MatchesReference(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 11))
	b := NewBoard(WithPrioritySource(rng.Uint64))
	best := make(map[pairKey]model.LeaderboardEntry)

	for i := 0; i < 3000; i++ {
		e := entry(rng.Int64N(60), rng.Int64N(5), rng.IntN(101), 30+rng.IntN(40))
		pk := pairKey{userID: e.UserID, taskID: e.TaskID}
		cur, ok := best[pk]
		wantUpdate := !ok || improves(e, &cur)
		if wantUpdate {
			best[pk] = e
		}
		if got := mustUpdate(t, b, e); got != wantUpdate {
			t.Fatalf("step %d: expected updated=%v, got %v", i, wantUpdate, got)
		}
	}

	want := referenceBoard(best)
	got, err := b.TopN(ctx, len(want)+10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %+v, got %+v", i, want[i], got[i])
		}
		r, err := b.Rank(ctx, want[i].UserID, want[i].TaskID)
		if err != nil || r.Rank != want[i].Rank {
			t.Fatalf("Rank(%d,%d): expected %d, got %d (%v)", want[i].UserID, want[i].TaskID, want[i].Rank, r.Rank, err)
		}
	}
}

func TestBoard_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	b := NewBoard()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _ = b.UpdateBest(ctx, entry(int64(w), int64(i%4), i%100, 100-i%50))
				_, _ = b.TopN(ctx, 5, nil)
				_, _ = b.Rank(ctx, int64(w), int64(i%4))
			}
		}(w)
	}
	wg.Wait()

	if count := b.Count(ctx); count != 32 {
		t.Errorf("expected 32 pairs, got %d", count)
	}
	entries, _ := b.TopN(ctx, 100, nil)
	for i := 1; i < len(entries); i++ {
		if less(keyOf(entries[i]), keyOf(entries[i-1])) {
			t.Fatalf("entries out of order at %d", i)
		}
	}
}
