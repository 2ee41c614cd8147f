package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/surgitrack/internal/domain/model"
	"github.com/okian/surgitrack/pkg/metrics"
)

// Treap-based, in-memory Ranking implementation.
//
// Ordering: score DESC, time ASC, user id ASC, task id ASC (deterministic).
// "less" means ranks earlier, so in-order traversal yields the leaderboard
// from best to worst. Subtree sizes give rank queries in O(log n).

type pairKey struct {
	userID int64
	taskID int64
}

// key is the position of an entry in the tree.
type key struct {
	score  int
	time   int
	userID int64
	taskID int64
}

func keyOf(e model.LeaderboardEntry) key {
	return key{score: e.Score, time: e.TimeSeconds, userID: e.UserID, taskID: e.TaskID}
}

// better reports whether a outranks b on (score, time) alone.
func better(aScore, aTime, bScore, bTime int) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aTime < bTime
}

func less(a, b key) bool {
	if a.score != b.score || a.time != b.time {
		return better(a.score, a.time, b.score, b.time)
	}
	if a.userID != b.userID {
		return a.userID < b.userID
	}
	return a.taskID < b.taskID
}

// treap node
type node struct {
	k     key
	entry *model.LeaderboardEntry
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n, nn *node) *node {
	if n == nil {
		return nn
	}
	if less(nn.k, n.k) {
		n.left = insert(n.left, nn)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, nn)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, k key) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.k == k:
		// Rotate the higher-priority child up until the node is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, k)
		}
	case less(k, n.k):
		n.left = deleteNode(n.left, k)
	default:
		n.right = deleteNode(n.right, k)
	}
	fix(n)
	return n
}

// countBetter returns the number of entries strictly better than
// (score, time). Those entries form a prefix of the in-order sequence.
func countBetter(n *node, score, time int) int {
	count := 0
	for n != nil {
		if better(n.k.score, n.k.time, score, time) {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// ranker assigns competition ranks to a best-first sequence.
type ranker struct {
	seen      int
	rank      int
	lastScore int
	lastTime  int
}

func (r *ranker) next(e model.LeaderboardEntry) int {
	r.seen++
	if r.seen == 1 || e.Score != r.lastScore || e.TimeSeconds != r.lastTime {
		r.rank = r.seen
		r.lastScore, r.lastTime = e.Score, e.TimeSeconds
	}
	return r.rank
}

// collectTopN appends up to limit kept entries in rank order.
func collectTopN(n *node, limit int, keep Filter, r *ranker, out *[]model.LeaderboardEntry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, keep, r, out)
	if len(*out) < limit && (keep == nil || keep(*n.entry)) {
		e := *n.entry
		e.Rank = r.next(e)
		*out = append(*out, e)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, keep, r, out)
	}
}

// Board is the leaderboard: best attempt per (user, task) pair in a treap.
type Board struct {
	mu   sync.RWMutex
	root *node
	best map[pairKey]*node
	prio func() uint64
}

// NewBoard constructs an empty board.
func NewBoard(opts ...Option) *Board {
	b := &Board{
		best: make(map[pairKey]*node),
		prio: rand.Uint64,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// improves reports whether e beats the current best of its pair.
func improves(e model.LeaderboardEntry, cur *model.LeaderboardEntry) bool {
	if e.Score != cur.Score {
		return e.Score > cur.Score
	}
	return e.TimeSeconds < cur.TimeSeconds
}

// UpdateBest implements Ranking.UpdateBest in O(log n) expected time.
func (b *Board) UpdateBest(_ context.Context, e model.LeaderboardEntry) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	pk := pairKey{userID: e.UserID, taskID: e.TaskID}
	e.Rank = 0

	b.mu.Lock()
	if old, ok := b.best[pk]; ok {
		if !improves(e, old.entry) {
			b.mu.Unlock()
			return false, nil
		}
		b.root = deleteNode(b.root, old.k)
	}
	nn := &node{k: keyOf(e), entry: &e, prio: b.prio(), size: 1}
	b.best[pk] = nn
	b.root = insert(b.root, nn)
	count := len(b.best)
	b.mu.Unlock()

	metrics.RecordLeaderboardUpdate()
	metrics.UpdateLeaderboardEntries(count)
	return true, nil
}

// Load replaces the board contents with entries, keeping the best per pair.
func (b *Board) Load(ctx context.Context, entries []model.LeaderboardEntry) error {
	b.mu.Lock()
	b.root = nil
	b.best = make(map[pairKey]*node, len(entries))
	b.mu.Unlock()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := b.UpdateBest(ctx, e); err != nil {
			return err
		}
	}
	metrics.UpdateLeaderboardEntries(b.Count(ctx))
	return nil
}

// Rank returns the entry and competition rank of a pair in O(log n).
func (b *Board) Rank(_ context.Context, userID, taskID int64) (model.LeaderboardEntry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	b.mu.RLock()
	defer b.mu.RUnlock()

	n, ok := b.best[pairKey{userID: userID, taskID: taskID}]
	if !ok {
		metrics.RecordErrorByComponent("leaderboard", "not_found")
		return model.LeaderboardEntry{}, ErrNotFound
	}
	e := *n.entry
	e.Rank = 1 + countBetter(b.root, e.Score, e.TimeSeconds)
	return e, nil
}

// TopN returns the first n kept entries, best first.
func (b *Board) TopN(_ context.Context, n int, keep Filter) ([]model.LeaderboardEntry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("leaderboard", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.LeaderboardEntry, 0, min(n, len(b.best)))
	var r ranker
	collectTopN(b.root, n, keep, &r, &out)
	return out, nil
}

// Count returns the number of ranked pairs.
func (b *Board) Count(_ context.Context) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.best)
}
