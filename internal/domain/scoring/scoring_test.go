package scoring_test

import (
	"sync"
	"testing"

	scoring "github.com/okian/surgitrack/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func repeat(sev scoring.Severity, n int) []scoring.Severity {
	out := make([]scoring.Severity, n)
	for i := range out {
		out[i] = sev
	}
	return out
}

func TestScore_Scenarios(t *testing.T) {
	Convey("Given the instrument tie standard", t, func() {
		std := scoring.Standard{TargetTimeSeconds: 180, MaxMinorErrors: 2, MaxMajorErrors: 0}

		Convey("When the attempt is on target with no errors", func() {
			res := scoring.Score(180, std, nil)

			Convey("Then it scores 100 and is proficient", func() {
				So(res.Score, ShouldEqual, 100)
				So(res.Proficient, ShouldBeTrue)
			})
		})

		Convey("When the attempt is 10s over with two minor errors", func() {
			res := scoring.Score(190, std, []scoring.Severity{scoring.SeverityMinor, scoring.SeverityMinor})

			Convey("Then time and minor penalties apply and proficiency fails on time", func() {
				So(res.Score, ShouldEqual, 80)
				So(res.Proficient, ShouldBeFalse)
			})
		})

		Convey("When a fast attempt logs a critical error", func() {
			res := scoring.Score(150, std, []scoring.Severity{scoring.SeverityCritical})

			Convey("Then it is capped at 60 and never proficient", func() {
				So(res.Score, ShouldBeLessThanOrEqualTo, 60)
				So(res.Score, ShouldEqual, 60)
				So(res.Proficient, ShouldBeFalse)
			})
		})

		Convey("When minor errors exceed the cap on time", func() {
			res := scoring.Score(170, std, repeat(scoring.SeverityMinor, 3))

			Convey("Then proficiency fails on errors", func() {
				So(res.Score, ShouldEqual, 85)
				So(res.Proficient, ShouldBeFalse)
			})
		})

		Convey("When a single major error is logged against a zero major cap", func() {
			res := scoring.Score(100, std, []scoring.Severity{scoring.SeverityMajor})

			Convey("Then it loses 15 points and proficiency", func() {
				So(res.Score, ShouldEqual, 85)
				So(res.Proficient, ShouldBeFalse)
			})
		})
	})

	Convey("Given a 200s target", t, func() {
		std := scoring.Standard{TargetTimeSeconds: 200}

		Convey("When the attempt takes 400s with no errors", func() {
			res := scoring.Score(400, std, nil)

			Convey("Then the time penalty is capped at 40", func() {
				So(res.Score, ShouldEqual, 60)
				So(res.Proficient, ShouldBeFalse)
			})
		})
	})
}

func TestScore_Properties(t *testing.T) {
	Convey("Given a range of standards and inputs", t, func() {
		std := scoring.Standard{TargetTimeSeconds: 120, MaxMinorErrors: 2, MaxMajorErrors: 1}

		Convey("Then any on-target attempt with no errors is a perfect proficient score", func() {
			for ts := 0; ts <= std.TargetTimeSeconds; ts += 7 {
				res := scoring.Score(ts, std, nil)
				So(res.Score, ShouldEqual, 100)
				So(res.Proficient, ShouldBeTrue)
			}
		})

		Convey("Then the score always stays within [0, 100]", func() {
			for ts := 0; ts < 400; ts += 13 {
				for minor := 0; minor < 25; minor += 4 {
					for major := 0; major < 9; major += 2 {
						errs := append(repeat(scoring.SeverityMinor, minor), repeat(scoring.SeverityMajor, major)...)
						res := scoring.Score(ts, std, errs)
						So(res.Score, ShouldBeBetweenOrEqual, 0, 100)
					}
				}
			}
		})

		Convey("Then the time penalty saturates past target + 40", func() {
			floor := scoring.Score(std.TargetTimeSeconds+40, std, nil).Score
			for over := 41; over < 500; over += 37 {
				So(scoring.Score(std.TargetTimeSeconds+over, std, nil).Score, ShouldEqual, floor)
			}
			So(floor, ShouldEqual, 60)
		})

		Convey("Then each extra minor error costs exactly 5 down to the floor", func() {
			prev := scoring.Score(60, std, nil).Score
			for n := 1; n <= 25; n++ {
				cur := scoring.Score(60, std, repeat(scoring.SeverityMinor, n)).Score
				So(cur, ShouldEqual, max(prev-5, 0))
				prev = cur
			}
			So(prev, ShouldEqual, 0)
		})

		Convey("Then each extra major error costs exactly 15 down to the floor", func() {
			prev := scoring.Score(60, std, nil).Score
			for n := 1; n <= 8; n++ {
				cur := scoring.Score(60, std, repeat(scoring.SeverityMajor, n)).Score
				So(cur, ShouldEqual, max(prev-15, 0))
				prev = cur
			}
		})

		Convey("Then any critical error forces a failed verdict and a score of at most 60", func() {
			cases := [][]scoring.Severity{
				{scoring.SeverityCritical},
				{scoring.SeverityCritical, scoring.SeverityCritical},
				{scoring.SeverityMinor, scoring.SeverityCritical},
				{scoring.SeverityMajor, scoring.SeverityMajor, scoring.SeverityMajor, scoring.SeverityCritical},
			}
			for _, errs := range cases {
				res := scoring.Score(10, std, errs)
				So(res.Proficient, ShouldBeFalse)
				So(res.Score, ShouldBeLessThanOrEqualTo, 60)
				So(res.Score, ShouldBeGreaterThanOrEqualTo, 0)
			}
		})

		Convey("Then penalties still apply below the critical cap", func() {
			errs := []scoring.Severity{scoring.SeverityCritical, scoring.SeverityMajor, scoring.SeverityMajor, scoring.SeverityMajor}
			So(scoring.Score(10, std, errs).Score, ShouldEqual, 55)
		})
	})
}

func TestScore_UnknownSeverity(t *testing.T) {
	Convey("Given observations with unrecognized severities", t, func() {
		std := scoring.Standard{TargetTimeSeconds: 60}
		errs := []scoring.Severity{"cosmetic", "", "MINOR"}

		Convey("When scoring", func() {
			res := scoring.Score(30, std, errs)

			Convey("Then they are ignored", func() {
				So(res.Score, ShouldEqual, 100)
				So(res.Proficient, ShouldBeTrue)
			})
		})

		Convey("Then Valid rejects them", func() {
			for _, s := range errs {
				So(s.Valid(), ShouldBeFalse)
			}
			So(scoring.SeverityMinor.Valid(), ShouldBeTrue)
			So(scoring.SeverityMajor.Valid(), ShouldBeTrue)
			So(scoring.SeverityCritical.Valid(), ShouldBeTrue)
		})
	})
}

func TestTally(t *testing.T) {
	Convey("Given a mixed set of observations", t, func() {
		errs := []scoring.Severity{
			scoring.SeverityMajor, scoring.SeverityMinor, "other",
			scoring.SeverityCritical, scoring.SeverityMinor,
		}

		Convey("Then Tally counts each known severity", func() {
			c := scoring.Tally(errs)
			So(c, ShouldResemble, scoring.Counts{Minor: 2, Major: 1, Critical: 1})
		})

		Convey("Then an empty set counts nothing", func() {
			So(scoring.Tally(nil), ShouldResemble, scoring.Counts{})
		})
	})
}

func TestScore_Deterministic(t *testing.T) {
	Convey("Given the same inputs scored concurrently", t, func() {
		std := scoring.Standard{TargetTimeSeconds: 240, MaxMinorErrors: 3, MaxMajorErrors: 1}
		errs := []scoring.Severity{scoring.SeverityMinor, scoring.SeverityMajor}
		want := scoring.Score(250, std, errs)

		results := make([]scoring.Result, 64)
		var wg sync.WaitGroup
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = scoring.Score(250, std, errs)
			}(i)
		}
		wg.Wait()

		Convey("Then every call yields the same result", func() {
			for _, r := range results {
				So(r, ShouldResemble, want)
			}
			So(want, ShouldResemble, scoring.Result{Score: 70, Proficient: false})
		})
	})
}
