package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/surgitrack/internal/domain/model"
	"github.com/okian/surgitrack/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStandard_Scoring(t *testing.T) {
	Convey("Given a stored standard", t, func() {
		std := model.Standard{ID: 3, TaskID: 1, Level: "PGY1", TargetTimeSeconds: 210, MaxMinorErrors: 2, MaxMajorErrors: 1, ConsecutiveRequired: 1}

		Convey("Then its scorer view carries the caps and target", func() {
			So(std.Scoring(), ShouldResemble, scoring.Standard{TargetTimeSeconds: 210, MaxMinorErrors: 2, MaxMajorErrors: 1})
		})
	})
}

func TestUser_JSONHidesPasswordHash(t *testing.T) {
	Convey("Given a user with a password hash", t, func() {
		u := model.User{ID: 1, Email: "a@b.c", PasswordHash: "secret", CreatedAt: time.Unix(0, 0).UTC()}

		Convey("When encoding to JSON", func() {
			raw, err := json.Marshal(u)
			So(err, ShouldBeNil)

			Convey("Then the hash is not present", func() {
				So(string(raw), ShouldNotContainSubstring, "secret")
				So(string(raw), ShouldNotContainSubstring, "password")
			})
		})
	})
}

func TestTaskSummary_JSONNullBests(t *testing.T) {
	Convey("Given a task without attempts", t, func() {
		ts := model.TaskSummary{TaskID: 2, TaskName: "Donati"}

		Convey("Then best values encode as null", func() {
			raw, err := json.Marshal(ts)
			So(err, ShouldBeNil)
			So(string(raw), ShouldContainSubstring, `"best_time_seconds":null`)
			So(string(raw), ShouldContainSubstring, `"best_score":null`)
		})
	})
}

func TestAttemptRecorded_Entry(t *testing.T) {
	Convey("Given a recorded attempt event", t, func() {
		ev := model.AttemptRecorded{AttemptID: 9, UserID: 4, UserEmail: "x@y.z", TaskID: 2, TaskName: "Figure Eight", Score: 85, TimeSeconds: 200, Proficient: true}

		Convey("Then its leaderboard row mirrors the event", func() {
			e := ev.Entry()
			So(e.Rank, ShouldEqual, 0)
			So(e.AttemptID, ShouldEqual, 9)
			So(e.UserID, ShouldEqual, 4)
			So(e.UserEmail, ShouldEqual, "x@y.z")
			So(e.TaskID, ShouldEqual, 2)
			So(e.TaskName, ShouldEqual, "Figure Eight")
			So(e.Score, ShouldEqual, 85)
			So(e.TimeSeconds, ShouldEqual, 200)
		})
	})
}
