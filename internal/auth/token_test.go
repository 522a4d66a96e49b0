package auth_test

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/admin-dashboard/internal/auth"
	"github.com/frahmantamala/admin-dashboard/internal/core/rbac"
	"github.com/frahmantamala/admin-dashboard/internal/core/user"
)

var _ = ginkgo.Describe("JWTCodec", func() {
	var (
		clock *testClock
		codec *auth.JWTCodec
		bob   *user.User
	)

	ginkgo.BeforeEach(func() {
		clock = newTestClock()
		codec = auth.NewJWTCodec(testSecret, "admin-dashboard", time.Hour, auth.WithCodecClock(clock.Now))
		bob = &user.User{ID: 2, UserID: "uid-bob", Username: "bob", Role: rbac.RoleAgent}
	})

	ginkgo.It("round trips identity claims", func() {
		token, expiresAt, err := codec.Encode(bob)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(expiresAt).To(gomega.Equal(clock.Now().Add(time.Hour)))

		claims := codec.Decode(token)
		gomega.Expect(claims).NotTo(gomega.BeNil())
		gomega.Expect(claims.UserID).To(gomega.Equal("uid-bob"))
		gomega.Expect(claims.Subject).To(gomega.Equal("uid-bob"))
		gomega.Expect(claims.Username).To(gomega.Equal("bob"))
		gomega.Expect(claims.Role).To(gomega.Equal("agent"))
	})

	ginkgo.It("rejects expired tokens", func() {
		token, _, err := codec.Encode(bob)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		clock.Advance(time.Hour + time.Minute)
		gomega.Expect(codec.Decode(token)).To(gomega.BeNil())
	})

	ginkgo.It("rejects tokens signed with another secret", func() {
		other := auth.NewJWTCodec("another-secret-key-also-32-chars-long", "admin-dashboard", time.Hour, auth.WithCodecClock(clock.Now))
		token, _, err := other.Encode(bob)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		gomega.Expect(codec.Decode(token)).To(gomega.BeNil())
	})

	ginkgo.It("rejects a foreign issuer", func() {
		other := auth.NewJWTCodec(testSecret, "someone-else", time.Hour, auth.WithCodecClock(clock.Now))
		token, _, err := other.Encode(bob)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		gomega.Expect(codec.Decode(token)).To(gomega.BeNil())
	})

	ginkgo.It("rejects other signing algorithms", func() {
		claims := &auth.Claims{
			UserID: "uid-bob",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "admin-dashboard",
				ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
			},
		}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(codec.Decode(unsigned)).To(gomega.BeNil())

		hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(codec.Decode(hs512)).To(gomega.BeNil())
	})

	ginkgo.It("returns nil for malformed input", func() {
		gomega.Expect(codec.Decode("")).To(gomega.BeNil())
		gomega.Expect(codec.Decode("abc.def.ghi")).To(gomega.BeNil())
		gomega.Expect(codec.Decode("not a token")).To(gomega.BeNil())
	})

	ginkgo.It("defaults the ttl to a day", func() {
		gomega.Expect(auth.NewJWTCodec(testSecret, "", 0).TTL()).To(gomega.Equal(auth.DefaultTokenTTL))
	})
})
