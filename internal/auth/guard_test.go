package auth_test

import (
	"net/http"
	"net/http/httptest"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/admin-dashboard/internal"
	"github.com/frahmantamala/admin-dashboard/internal/auth"
	"github.com/frahmantamala/admin-dashboard/internal/core/rbac"
	"github.com/frahmantamala/admin-dashboard/internal/core/user"
)

func principal(role rbac.Role) *user.AuthenticatedUser {
	return user.NewAuthenticatedUser(&user.User{ID: 1, UserID: "uid-1", Username: "p", Role: role, IsActive: true}, "", user.AuthMethodJWT)
}

var _ = ginkgo.Describe("Authorize", func() {
	ginkgo.It("is unauthenticated without a principal", func() {
		d := auth.Authorize(nil, rbac.PermUserRead)
		gomega.Expect(d.Outcome).To(gomega.Equal(auth.Unauthenticated))
		gomega.Expect(d.Err()).To(gomega.MatchError(internal.ErrAuthenticationRequired))
	})

	ginkgo.It("names the missing permissions", func() {
		d := auth.Authorize(principal(rbac.RoleAgent), rbac.PermTicketAssign, rbac.PermUserDelete)
		gomega.Expect(d.Outcome).To(gomega.Equal(auth.Forbidden))
		gomega.Expect(d.Missing).To(gomega.Equal([]rbac.Permission{rbac.PermUserDelete}))

		appErr, ok := internal.IsAppError(d.Err())
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(appErr.StatusCode).To(gomega.Equal(http.StatusForbidden))
		gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodePermissionDenied))
	})

	ginkgo.It("allows a super admin everything", func() {
		d := auth.Authorize(principal(rbac.RoleSuperAdmin), rbac.AllPermissions()...)
		gomega.Expect(d.Allowed()).To(gomega.BeTrue())
		gomega.Expect(d.Err()).To(gomega.BeNil())
	})

	ginkgo.It("needs only one permission for AuthorizeAny", func() {
		gomega.Expect(auth.AuthorizeAny(principal(rbac.RoleCustomer), rbac.PermUserDelete, rbac.PermTicketCreate).Allowed()).To(gomega.BeTrue())
		gomega.Expect(auth.AuthorizeAny(principal(rbac.RoleCustomer), rbac.PermUserDelete).Allowed()).To(gomega.BeFalse())
		gomega.Expect(auth.AuthorizeAny(principal(rbac.RoleSuperAdmin)).Allowed()).To(gomega.BeFalse())
	})

	ginkgo.It("treats an unknown role as having nothing", func() {
		d := auth.Authorize(principal(rbac.Role("intern")), rbac.PermDashboardView)
		gomega.Expect(d.Outcome).To(gomega.Equal(auth.Forbidden))
	})
})

var _ = ginkgo.Describe("RBACAuthorization", func() {
	var (
		ra   *auth.RBACAuthorization
		next http.Handler
	)

	ginkgo.BeforeEach(func() {
		ra = auth.NewRBACAuthorization(nil)
		next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	})

	serve := func(h http.Handler, p *user.AuthenticatedUser) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if p != nil {
			req = req.WithContext(internal.ContextWithPrincipal(req.Context(), p))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	ginkgo.It("returns 401 without a principal", func() {
		rec := serve(ra.RequirePermissions(rbac.PermUserRead)(next), nil)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
	})

	ginkgo.It("returns 403 naming the missing permission", func() {
		rec := serve(ra.RequirePermissions(rbac.PermUserManageRoles)(next), principal(rbac.RoleAdmin))
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
		gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("user_manage_roles"))
	})

	ginkgo.It("passes through when allowed", func() {
		rec := serve(ra.RequirePermissions(rbac.PermUserManageRoles)(next), principal(rbac.RoleSuperAdmin))
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusTeapot))

		rec = serve(ra.RequireAnyPermission(rbac.PermUserRead, rbac.PermTicketCreate)(next), principal(rbac.RoleCustomer))
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusTeapot))
	})
})
