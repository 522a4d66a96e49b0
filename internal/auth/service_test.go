package auth_test

import (
	"context"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/admin-dashboard/internal/auth"
	"github.com/frahmantamala/admin-dashboard/internal/core/events"
	"github.com/frahmantamala/admin-dashboard/internal/core/rbac"
	"github.com/frahmantamala/admin-dashboard/internal/core/user"
	"github.com/frahmantamala/admin-dashboard/internal/session"
	accounts "github.com/frahmantamala/admin-dashboard/internal/user"
)

var _ = ginkgo.Describe("Service", func() {
	var (
		ctx context.Context
		f   *fixture
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		f = newFixture(auth.Options{MaxConcurrent: 3, EnforceOnCreate: true})
	})

	ginkgo.Describe("AuthenticateUser", func() {
		var alice *user.User

		ginkgo.BeforeEach(func() {
			alice = f.createUser("alice", "pw123456", rbac.RoleCustomer, true)
		})

		ginkgo.It("accepts user id, username and email", func() {
			for _, identifier := range []string{"uid-alice", "alice", "alice@x.com", "ALICE@x.com"} {
				u, err := f.service.AuthenticateUser(ctx, identifier, "pw123456")
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
				gomega.Expect(u).NotTo(gomega.BeNil(), identifier)
				gomega.Expect(u.UserID).To(gomega.Equal(alice.UserID))
			}
		})

		ginkgo.It("records last login", func() {
			u, err := f.service.AuthenticateUser(ctx, "alice", "pw123456")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(u.LastLogin).NotTo(gomega.BeNil())

			stored, err := f.users.GetByID(ctx, alice.ID)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(stored.LastLogin).NotTo(gomega.BeNil())
			gomega.Expect(stored.LastLogin.Equal(f.clock.Now())).To(gomega.BeTrue())
		})

		ginkgo.It("returns nil for a wrong password or unknown identifier", func() {
			u, err := f.service.AuthenticateUser(ctx, "alice", "wrong-pass1")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(u).To(gomega.BeNil())

			u, err = f.service.AuthenticateUser(ctx, "nobody", "pw123456")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(u).To(gomega.BeNil())

			u, err = f.service.AuthenticateUser(ctx, "", "pw123456")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(u).To(gomega.BeNil())
		})

		ginkgo.It("rejects inactive users regardless of password", func() {
			f.createUser("dave", "pw123456", rbac.RoleAdmin, false)

			u, err := f.service.AuthenticateUser(ctx, "dave", "pw123456")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(u).To(gomega.BeNil())

			u, err = f.service.AuthenticateUser(ctx, "dave", "wrong")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(u).To(gomega.BeNil())
		})

		ginkgo.It("publishes the outcome", func() {
			_, _ = f.service.AuthenticateUser(ctx, "alice", "pw123456")
			_, _ = f.service.AuthenticateUser(ctx, "alice", "nope")

			gomega.Expect(f.bus.types()).To(gomega.Equal([]string{
				events.EventTypeLoginSucceeded,
				events.EventTypeLoginFailed,
			}))
		})
	})

	ginkgo.It("signs a registered account in and out with the documented credentials", func() {
		accountSvc := accounts.NewService(f.users, f.hasher, f.sessions, f.bus, nil)
		registered, err := accountSvc.Register(ctx, accounts.RegisterDTO{Username: "alice", Email: "alice@x.com", Password: "pw123"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		byName, err := f.service.AuthenticateUser(ctx, "alice", "pw123")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(byName).NotTo(gomega.BeNil())
		gomega.Expect(byName.UserID).To(gomega.Equal(registered.UserID))

		byEmail, err := f.service.AuthenticateUser(ctx, "alice@x.com", "pw123")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(byEmail).NotTo(gomega.BeNil())
		gomega.Expect(byEmail.UserID).To(gomega.Equal(registered.UserID))

		wrong, err := f.service.AuthenticateUser(ctx, "alice", "wrong")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(wrong).To(gomega.BeNil())

		token, err := f.service.CreateUserSession(ctx, byName, auth.SessionOptions{})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		p, err := f.service.GetUserFromSession(ctx, token)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(p).NotTo(gomega.BeNil())
		gomega.Expect(p.Username).To(gomega.Equal("alice"))

		ok, err := f.service.InvalidateSession(ctx, token)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(ok).To(gomega.BeTrue())

		p, err = f.service.GetUserFromSession(ctx, token)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(p).To(gomega.BeNil())
	})

	ginkgo.Describe("sessions", func() {
		var alice *user.User

		ginkgo.BeforeEach(func() {
			alice = f.createUser("alice", "pw123456", rbac.RoleCustomer, true)
		})

		ginkgo.It("resolves a created session to its owner", func() {
			token, err := f.service.CreateUserSession(ctx, alice, auth.SessionOptions{UserAgent: "ua", IPAddress: "10.0.0.1"})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			p, err := f.service.GetUserFromSession(ctx, token)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(p).NotTo(gomega.BeNil())
			gomega.Expect(p.UserID).To(gomega.Equal(alice.UserID))
			gomega.Expect(p.AuthMethod).To(gomega.Equal(user.AuthMethodSession))
			gomega.Expect(p.SessionID).NotTo(gomega.BeEmpty())
			gomega.Expect(p.HasPermission(rbac.PermUserRead)).To(gomega.BeFalse())
		})

		ginkgo.It("stops resolving after invalidation", func() {
			token, err := f.service.CreateUserSession(ctx, alice, auth.SessionOptions{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			ok, err := f.service.InvalidateSession(ctx, token)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeTrue())

			p, err := f.service.GetUserFromSession(ctx, token)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(p).To(gomega.BeNil())

			ok, err = f.service.InvalidateSession(ctx, token)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeFalse())
		})

		ginkgo.It("does not resolve expired sessions that are still flagged active", func() {
			token, err := f.service.CreateUserSession(ctx, alice, auth.SessionOptions{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			f.clock.Advance(auth.DefaultSessionTTL + time.Second)

			p, err := f.service.GetUserFromSession(ctx, token)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(p).To(gomega.BeNil())
		})

		ginkgo.It("uses the remember-me lifetime", func() {
			token, err := f.service.CreateUserSession(ctx, alice, auth.SessionOptions{RememberMe: true})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			f.clock.Advance(auth.DefaultSessionTTL + time.Hour)

			p, err := f.service.GetUserFromSession(ctx, token)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(p).NotTo(gomega.BeNil())
		})

		ginkgo.It("does not resolve sessions of a deactivated owner", func() {
			token, err := f.service.CreateUserSession(ctx, alice, auth.SessionOptions{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			_, err = f.users.SetActive(ctx, alice.ID, false)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			p, err := f.service.GetUserFromSession(ctx, token)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(p).To(gomega.BeNil())
		})

		ginkgo.It("returns nil for garbage tokens", func() {
			for _, token := range []string{"", "garbage", "a.b", "x.y.z"} {
				p, err := f.service.GetUserFromSession(ctx, token)
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
				gomega.Expect(p).To(gomega.BeNil())
			}
		})

		ginkgo.It("enforces the concurrency limit on create", func() {
			tokens := make([]string, 0, 5)
			for i := 0; i < 5; i++ {
				token, err := f.service.CreateUserSession(ctx, alice, auth.SessionOptions{})
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
				tokens = append(tokens, token)
				f.clock.Advance(time.Minute)
			}

			n, err := f.sessions.CountActiveForUser(ctx, alice.ID)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(n).To(gomega.Equal(int64(3)))

			oldest, err := f.service.GetUserFromSession(ctx, tokens[0])
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(oldest).To(gomega.BeNil())

			newest, err := f.service.GetUserFromSession(ctx, tokens[4])
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(newest).NotTo(gomega.BeNil())
		})

		ginkgo.It("leaves sessions alone when enforcement is off", func() {
			f = newFixture(auth.Options{MaxConcurrent: 1})
			bob := f.createUser("bob", "pw123456", rbac.RoleAgent, true)
			for i := 0; i < 3; i++ {
				_, err := f.service.CreateUserSession(ctx, bob, auth.SessionOptions{})
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
			}

			n, err := f.sessions.CountActiveForUser(ctx, bob.ID)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(n).To(gomega.Equal(int64(3)))
		})

		ginkgo.It("invalidates every session of a user", func() {
			for i := 0; i < 2; i++ {
				_, err := f.service.CreateUserSession(ctx, alice, auth.SessionOptions{})
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
			}

			n, err := f.service.InvalidateAllUserSessions(ctx, alice.ID)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(n).To(gomega.Equal(int64(2)))
			gomega.Expect(f.bus.types()).To(gomega.ContainElement(events.EventTypeSessionInvalidated))
		})

		ginkgo.It("rotates a session on refresh", func() {
			token, err := f.service.CreateUserSession(ctx, alice, auth.SessionOptions{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			next, err := f.service.RefreshSession(ctx, token, auth.SessionOptions{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(next).NotTo(gomega.BeEmpty())
			gomega.Expect(next).NotTo(gomega.Equal(token))

			old, err := f.service.GetUserFromSession(ctx, token)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(old).To(gomega.BeNil())

			p, err := f.service.GetUserFromSession(ctx, next)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(p.UserID).To(gomega.Equal(alice.UserID))

			again, err := f.service.RefreshSession(ctx, token, auth.SessionOptions{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(again).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("bearer tokens", func() {
		var bob *user.User

		ginkgo.BeforeEach(func() {
			bob = f.createUser("bob", "pw123456", rbac.RoleAgent, true)
		})

		ginkgo.It("resolves a JWT while the account is active", func() {
			token, err := f.service.CreateJWTToken(bob)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			p, err := f.service.GetUserFromJWT(ctx, token)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(p).NotTo(gomega.BeNil())
			gomega.Expect(p.UserID).To(gomega.Equal(bob.UserID))
			gomega.Expect(p.AuthMethod).To(gomega.Equal(user.AuthMethodJWT))
			gomega.Expect(p.SessionID).To(gomega.BeEmpty())
		})

		ginkgo.It("stops resolving a JWT once the account is deactivated", func() {
			token, err := f.service.CreateJWTToken(bob)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			_, err = f.users.SetActive(ctx, bob.ID, false)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			p, err := f.service.GetUserFromJWT(ctx, token)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(p).To(gomega.BeNil())
		})

		ginkgo.It("takes permissions from the stored role, not the token", func() {
			token, err := f.service.CreateJWTToken(bob)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			_, err = f.users.UpdateRole(ctx, bob.ID, rbac.RoleCustomer)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			p, err := f.service.GetUserFromJWT(ctx, token)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(p.Role).To(gomega.Equal(rbac.RoleCustomer))
			gomega.Expect(p.HasPermission(rbac.PermTicketAssign)).To(gomega.BeFalse())
		})

		ginkgo.It("returns nil for an expired JWT", func() {
			token, err := f.service.CreateJWTToken(bob)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			f.clock.Advance(2 * time.Hour)

			p, err := f.service.GetUserFromJWT(ctx, token)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(p).To(gomega.BeNil())
		})
	})

	ginkgo.Describe("ResolveRequest", func() {
		var (
			alice, bob   *user.User
			aliceSession string
			bobSession   string
			bobJWT       string
		)

		ginkgo.BeforeEach(func() {
			var err error
			alice = f.createUser("alice", "pw123456", rbac.RoleCustomer, true)
			bob = f.createUser("bob", "pw123456", rbac.RoleAgent, true)

			aliceSession, err = f.service.CreateUserSession(ctx, alice, auth.SessionOptions{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			bobSession, err = f.service.CreateUserSession(ctx, bob, auth.SessionOptions{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			bobJWT, err = f.service.CreateJWTToken(bob)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})

		ginkgo.It("prefers the session cookie", func() {
			p, err := f.service.ResolveRequest(ctx, auth.Credentials{SessionToken: aliceSession, BearerToken: bobJWT})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(p.UserID).To(gomega.Equal(alice.UserID))
			gomega.Expect(p.AuthMethod).To(gomega.Equal(user.AuthMethodSession))
		})

		ginkgo.It("accepts a session token as bearer", func() {
			p, err := f.service.ResolveRequest(ctx, auth.Credentials{BearerToken: bobSession})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(p.UserID).To(gomega.Equal(bob.UserID))
			gomega.Expect(p.AuthMethod).To(gomega.Equal(user.AuthMethodSession))
		})

		ginkgo.It("falls back to the bearer JWT when the cookie is stale", func() {
			_, err := f.service.InvalidateSession(ctx, aliceSession)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			p, err := f.service.ResolveRequest(ctx, auth.Credentials{SessionToken: aliceSession, BearerToken: bobJWT})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(p.UserID).To(gomega.Equal(bob.UserID))
			gomega.Expect(p.AuthMethod).To(gomega.Equal(user.AuthMethodJWT))
		})

		ginkgo.It("returns nil when nothing resolves", func() {
			p, err := f.service.ResolveRequest(ctx, auth.Credentials{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(p).To(gomega.BeNil())

			p, err = f.service.ResolveRequest(ctx, auth.Credentials{SessionToken: "junk", BearerToken: "junk"})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(p).To(gomega.BeNil())
		})
	})

	ginkgo.It("flags suspicious activity without blocking logins", func() {
		f = newFixture(auth.Options{MaxConcurrent: 50, EnforceOnCreate: true})
		carol := f.createUser("carol", "pw123456", rbac.RoleAgent, true)

		for i := 0; i < 7; i++ {
			_, err := f.service.CreateUserSession(ctx, carol, auth.SessionOptions{})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		}

		gomega.Expect(f.bus.types()).To(gomega.ContainElement(events.EventTypeSuspiciousActivity))
		report, err := f.manager.DetectSuspiciousActivity(ctx, carol.ID)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(report.Reasons).To(gomega.ContainElement(session.ReasonActiveSessions))
	})
})
