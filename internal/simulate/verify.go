package simulate

import "fmt"

// Entry is a leaderboard row as served by GET /leaderboard/global.
type Entry struct {
	Rank        int    `json:"rank"`
	UserID      int64  `json:"user_id"`
	UserEmail   string `json:"user_email"`
	TaskID      int64  `json:"task_id"`
	TaskName    string `json:"task_name"`
	Score       int    `json:"score"`
	TimeSeconds int    `json:"time_seconds"`
	AttemptID   int64  `json:"attempt_id"`
}

// VerifyLeaderboard checks that entries are ordered by score descending then
// time ascending, carry competition ranks, and hold one row per user and
// task.
func VerifyLeaderboard(entries []Entry) error {
	type pair struct{ user, task int64 }
	seen := make(map[pair]struct{}, len(entries))

	for i, e := range entries {
		p := pair{e.UserID, e.TaskID}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("entry %d: user %d appears twice for task %d", i, e.UserID, e.TaskID)
		}
		seen[p] = struct{}{}

		if e.Score < 0 || e.Score > 100 {
			return fmt.Errorf("entry %d: score %d out of range", i, e.Score)
		}
		if i == 0 {
			if e.Rank != 1 {
				return fmt.Errorf("entry 0: rank %d, want 1", e.Rank)
			}
			continue
		}

		prev := entries[i-1]
		switch {
		case e.Score > prev.Score,
			e.Score == prev.Score && e.TimeSeconds < prev.TimeSeconds:
			return fmt.Errorf("entry %d (score %d, %ds) ranks below entry %d (score %d, %ds)",
				i, e.Score, e.TimeSeconds, i-1, prev.Score, prev.TimeSeconds)
		case e.Score == prev.Score && e.TimeSeconds == prev.TimeSeconds:
			if e.Rank != prev.Rank {
				return fmt.Errorf("entry %d: tied with entry %d but ranked %d, want %d", i, i-1, e.Rank, prev.Rank)
			}
		default:
			if e.Rank != i+1 {
				return fmt.Errorf("entry %d: rank %d, want %d", i, e.Rank, i+1)
			}
		}
	}
	return nil
}
