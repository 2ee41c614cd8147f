// Package scoring computes the score and proficiency verdict of a timed attempt.
//
// Score is a pure function: it performs no I/O, holds no state and is safe to
// call from any number of goroutines.
package scoring

// Scoring constants.
const (
	maxScore       = 100
	maxTimePenalty = 40
	minorPenalty   = 5
	majorPenalty   = 15
	criticalCap    = 60
)

// Severity classifies a logged error observation.
type Severity string

// Known severities. Any other value is ignored when scoring.
const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityMinor, SeverityMajor, SeverityCritical:
		return true
	default:
		return false
	}
}

// Standard is the benchmark an attempt is scored against.
type Standard struct {
	TargetTimeSeconds int
	MaxMinorErrors    int
	MaxMajorErrors    int
}

// Result is the outcome of scoring one attempt.
type Result struct {
	Score      int
	Proficient bool
}

// Counts holds the number of observations per known severity.
type Counts struct {
	Minor    int
	Major    int
	Critical int
}

// Tally counts observations by severity. Unknown severities are skipped.
func Tally(errs []Severity) Counts {
	var c Counts
	for _, sev := range errs {
		switch sev {
		case SeverityMinor:
			c.Minor++
		case SeverityMajor:
			c.Major++
		case SeverityCritical:
			c.Critical++
		}
	}
	return c
}

// Score applies the time penalty (capped at 40 points), the per-severity error
// penalties and the proficiency check. A critical error caps the score at 60
// and always fails proficiency. The returned score is in [0, 100].
func Score(timeSeconds int, std Standard, errs []Severity) Result {
	score := maxScore

	extra := max(0, timeSeconds-std.TargetTimeSeconds)
	score -= min(maxTimePenalty, extra)

	c := Tally(errs)
	score -= c.Minor * minorPenalty
	score -= c.Major * majorPenalty

	var proficient bool
	if c.Critical > 0 {
		score = min(score, criticalCap)
	} else {
		proficient = timeSeconds <= std.TargetTimeSeconds &&
			c.Minor <= std.MaxMinorErrors &&
			c.Major <= std.MaxMajorErrors
	}

	return Result{Score: max(score, 0), Proficient: proficient}
}
