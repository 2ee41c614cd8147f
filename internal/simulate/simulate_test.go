package simulate_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/surgitrack/internal/adapters/http/api"
	"github.com/okian/surgitrack/internal/adapters/repository/sqlite"
	service "github.com/okian/surgitrack/internal/app"
	"github.com/okian/surgitrack/internal/domain/catalog"
	"github.com/okian/surgitrack/internal/simulate"
	"github.com/okian/surgitrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newServer(t *testing.T, seed bool) *httptest.Server {
	ctx := context.Background()
	store, err := sqlite.Open(ctx, "file:simulate_"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	if seed {
		cat, err := catalog.Default()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := cat.Seed(ctx, store); err != nil {
			t.Fatal(err)
		}
	}

	svc := service.New(store)
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(ctx, mux)
	srv := httptest.NewServer(api.Chain(mux))
	t.Cleanup(func() {
		srv.Close()
		_ = store.Close()
	})
	return srv
}

func TestRun(t *testing.T) {
	srv := newServer(t, true)

	Convey("Given a seeded service", t, func() {
		cfg := simulate.DefaultConfig()
		cfg.BaseURL = srv.URL
		cfg.Users = 4
		cfg.Attempts = 40
		cfg.Workers = 4
		cfg.Settle = 0
		cfg.RetryRatio = 0.25
		cfg.Seed = 7

		Convey("When a simulation runs", func() {
			stats, err := simulate.Run(context.Background(), cfg)

			Convey("Then every attempt is accepted once and the board verifies", func() {
				So(err, ShouldBeNil)
				So(stats.UsersRegistered, ShouldEqual, 4)
				So(stats.AttemptsSuccessful, ShouldEqual, 40)
				So(stats.AttemptsDuplicate, ShouldEqual, stats.AttemptsGenerated-40)
				So(stats.AttemptsFailed, ShouldEqual, 0)
				So(stats.LeaderboardEntries, ShouldBeGreaterThan, 0)
				So(stats.Duration, ShouldBeGreaterThan, time.Duration(0))
			})
		})
	})
}

func TestRun_EmptyCatalog(t *testing.T) {
	srv := newServer(t, false)

	Convey("Given a service without tasks", t, func() {
		cfg := simulate.DefaultConfig()
		cfg.BaseURL = srv.URL
		cfg.Users = 1
		cfg.Attempts = 1
		cfg.Settle = 0

		Convey("Then the run stops before registering anyone", func() {
			stats, err := simulate.Run(context.Background(), cfg)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "seed the catalog")
			So(stats.UsersRegistered, ShouldEqual, 0)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	Convey("Given the default config", t, func() {
		cfg := simulate.DefaultConfig()
		So(cfg.Validate(), ShouldBeNil)

		Convey("Then bad settings are rejected", func() {
			bad := []func(*simulate.Config){
				func(c *simulate.Config) { c.BaseURL = "" },
				func(c *simulate.Config) { c.Users = 0 },
				func(c *simulate.Config) { c.Attempts = -1 },
				func(c *simulate.Config) { c.Workers = 0 },
				func(c *simulate.Config) { c.TopN = 0 },
				func(c *simulate.Config) { c.Timeout = 0 },
				func(c *simulate.Config) { c.RetryRatio = 1.5 },
			}
			for _, mutate := range bad {
				c := simulate.DefaultConfig()
				mutate(&c)
				So(c.Validate(), ShouldNotBeNil)
			}
		})

		Convey("Then Run refuses an invalid config", func() {
			cfg.Users = 0
			_, err := simulate.Run(context.Background(), cfg)
			So(err, ShouldNotBeNil)
			So(errors.Is(err, simulate.ErrIdempotency), ShouldBeFalse)
		})
	})
}

func TestVerifyLeaderboard(t *testing.T) {
	Convey("Given leaderboard rows", t, func() {
		Convey("When they are ordered with competition ranks", func() {
			rows := []simulate.Entry{
				{Rank: 1, UserID: 1, TaskID: 1, Score: 100, TimeSeconds: 90},
				{Rank: 2, UserID: 2, TaskID: 1, Score: 100, TimeSeconds: 120},
				{Rank: 2, UserID: 3, TaskID: 1, Score: 100, TimeSeconds: 120},
				{Rank: 4, UserID: 1, TaskID: 2, Score: 80, TimeSeconds: 60},
			}
			So(simulate.VerifyLeaderboard(rows), ShouldBeNil)
		})

		Convey("When an empty board is checked", func() {
			So(simulate.VerifyLeaderboard(nil), ShouldBeNil)
		})

		Convey("When a lower score precedes a higher one", func() {
			rows := []simulate.Entry{
				{Rank: 1, UserID: 1, TaskID: 1, Score: 70},
				{Rank: 2, UserID: 2, TaskID: 1, Score: 90},
			}
			So(simulate.VerifyLeaderboard(rows), ShouldNotBeNil)
		})

		Convey("When equal scores are out of time order", func() {
			rows := []simulate.Entry{
				{Rank: 1, UserID: 1, TaskID: 1, Score: 90, TimeSeconds: 200},
				{Rank: 2, UserID: 2, TaskID: 1, Score: 90, TimeSeconds: 100},
			}
			So(simulate.VerifyLeaderboard(rows), ShouldNotBeNil)
		})

		Convey("When ties carry different ranks", func() {
			rows := []simulate.Entry{
				{Rank: 1, UserID: 1, TaskID: 1, Score: 90, TimeSeconds: 100},
				{Rank: 2, UserID: 2, TaskID: 1, Score: 90, TimeSeconds: 100},
			}
			So(simulate.VerifyLeaderboard(rows), ShouldNotBeNil)
		})

		Convey("When ranks skip incorrectly after a tie", func() {
			rows := []simulate.Entry{
				{Rank: 1, UserID: 1, TaskID: 1, Score: 90, TimeSeconds: 100},
				{Rank: 1, UserID: 2, TaskID: 1, Score: 90, TimeSeconds: 100},
				{Rank: 2, UserID: 3, TaskID: 1, Score: 50, TimeSeconds: 100},
			}
			So(simulate.VerifyLeaderboard(rows), ShouldNotBeNil)
		})

		Convey("When a user appears twice for a task", func() {
			rows := []simulate.Entry{
				{Rank: 1, UserID: 1, TaskID: 1, Score: 90},
				{Rank: 2, UserID: 1, TaskID: 1, Score: 80},
			}
			So(simulate.VerifyLeaderboard(rows), ShouldNotBeNil)
		})

		Convey("When the first rank is not 1", func() {
			So(simulate.VerifyLeaderboard([]simulate.Entry{{Rank: 2, UserID: 1, TaskID: 1}}), ShouldNotBeNil)
		})
	})
}
