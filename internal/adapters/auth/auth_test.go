package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/surgitrack/internal/adapters/auth"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPasswords(t *testing.T) {
	Convey("Given a hashed password", t, func() {
		hash, err := auth.HashPassword("s3cret!")
		So(err, ShouldBeNil)
		So(hash, ShouldNotEqual, "s3cret!")

		Convey("Then the right password matches", func() {
			So(auth.CheckPassword(hash, "s3cret!"), ShouldBeNil)
		})

		Convey("Then a wrong password is rejected", func() {
			So(errors.Is(auth.CheckPassword(hash, "nope"), auth.ErrInvalidPassword), ShouldBeTrue)
		})

		Convey("Then a malformed hash is rejected", func() {
			So(errors.Is(auth.CheckPassword("not-a-hash", "s3cret!"), auth.ErrInvalidPassword), ShouldBeTrue)
		})
	})
}

func TestTokens(t *testing.T) {
	Convey("Given a token issuer with a fixed clock", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		tokens := auth.NewTokens("secret", auth.WithTTL(time.Hour), auth.WithClock(clock))

		token, err := tokens.Issue(42)
		So(err, ShouldBeNil)

		Convey("When verifying the token before it expires", func() {
			id, err := tokens.Verify(token)

			Convey("Then it yields the user id", func() {
				So(err, ShouldBeNil)
				So(id, ShouldEqual, 42)
			})
		})

		Convey("When verifying after the TTL", func() {
			later := auth.NewTokens("secret", auth.WithClock(func() time.Time { return now.Add(2 * time.Hour) }))
			_, err := later.Verify(token)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, auth.ErrInvalidToken), ShouldBeTrue)
			})
		})

		Convey("When verifying with another secret", func() {
			other := auth.NewTokens("other", auth.WithClock(clock))
			_, err := other.Verify(token)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, auth.ErrInvalidToken), ShouldBeTrue)
			})
		})

		Convey("When verifying garbage", func() {
			_, err := tokens.Verify("not.a.token")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, auth.ErrInvalidToken), ShouldBeTrue)
			})
		})
	})
}
