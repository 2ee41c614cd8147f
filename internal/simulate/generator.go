package simulate

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

type task struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type standard struct {
	ID                int64 `json:"id"`
	TargetTimeSeconds int   `json:"target_time_seconds"`
}

type errorType struct {
	ID       int64  `json:"id"`
	Severity string `json:"severity"`
}

type attemptError struct {
	ErrorTypeID int64 `json:"error_type_id"`
}

// attemptBody mirrors the POST /attempts request.
type attemptBody struct {
	TaskID     int64          `json:"task_id"`
	StandardID int64          `json:"standard_id"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    time.Time      `json:"ended_at"`
	Errors     []attemptError `json:"errors"`
}

// job is one submission: which trainee sends which attempt under which key.
type job struct {
	User  int
	Key   string
	Body  attemptBody
	Retry bool
}

// catalog is what the generator draws attempts from.
type catalog struct {
	tasks     []task
	standards map[int64]standard
	minor     []int64
	major     []int64
	critical  []int64
}

func newCatalog(tasks []task, standards map[int64]standard, errs []errorType) *catalog {
	c := &catalog{standards: standards}
	for _, t := range tasks {
		if _, ok := standards[t.ID]; ok {
			c.tasks = append(c.tasks, t)
		}
	}
	for _, e := range errs {
		switch e.Severity {
		case "minor":
			c.minor = append(c.minor, e.ID)
		case "major":
			c.major = append(c.major, e.ID)
		case "critical":
			c.critical = append(c.critical, e.ID)
		}
	}
	return c
}

// generator produces randomized attempts. Performances are spread so that
// the board sees proficient runs, slow runs and the occasional critical
// error.
type generator struct {
	rng *rand.Rand
	cat *catalog
	now func() time.Time
}

func newGenerator(seed uint64, cat *catalog) *generator {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &generator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		cat: cat,
		now: time.Now,
	}
}

// jobs returns n attempts spread over users trainees, followed by retries of
// a retryRatio share of them.
func (g *generator) jobs(n, users int, retryRatio float64) []job {
	out := make([]job, 0, n+int(float64(n)*retryRatio)+1)
	for i := 0; i < n; i++ {
		out = append(out, job{
			User: g.rng.IntN(users),
			Key:  uuid.NewString(),
			Body: g.attempt(),
		})
	}
	for i := 0; i < n; i++ {
		if g.rng.Float64() < retryRatio {
			retry := out[i]
			retry.Retry = true
			out = append(out, retry)
		}
	}
	return out
}

func (g *generator) attempt() attemptBody {
	t := g.cat.tasks[g.rng.IntN(len(g.cat.tasks))]
	std := g.cat.standards[t.ID]

	target := max(std.TargetTimeSeconds, 1)
	// 0.5x to 2x the target time.
	secs := target/2 + g.rng.IntN(target*3/2+1)
	ended := g.now().UTC().Truncate(time.Second)

	return attemptBody{
		TaskID:     t.ID,
		StandardID: std.ID,
		StartedAt:  ended.Add(-time.Duration(max(secs, 1)) * time.Second),
		EndedAt:    ended,
		Errors:     g.errors(),
	}
}

func (g *generator) errors() []attemptError {
	var out []attemptError
	pick := func(ids []int64, n int) {
		for i := 0; i < n && len(ids) > 0; i++ {
			out = append(out, attemptError{ErrorTypeID: ids[g.rng.IntN(len(ids))]})
		}
	}
	switch r := g.rng.IntN(10); {
	case r < 4:
		// clean run
	case r < 7:
		pick(g.cat.minor, 1+g.rng.IntN(3))
	case r < 9:
		pick(g.cat.major, 1+g.rng.IntN(2))
		pick(g.cat.minor, g.rng.IntN(2))
	default:
		pick(g.cat.critical, 1)
	}
	return out
}
