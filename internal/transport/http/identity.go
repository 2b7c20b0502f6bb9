package http

import (
	"net/http"
	"strings"

	"exam-submission-service/internal/domain"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

// withIdentity trusts the upstream identity provider's headers and attaches the caller to the context.
func withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerUserID))
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Message: "missing caller identity"})
			return
		}
		role := domain.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(headerUserRole))))
		switch role {
		case "":
			role = domain.RoleStudent
		case domain.RoleStudent, domain.RoleTeacher, domain.RoleAdmin:
		default:
			writeJSON(w, http.StatusUnauthorized, errorBody{Message: "unknown caller role"})
			return
		}
		ctx := domain.WithPrincipal(r.Context(), domain.Principal{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !principal(r).IsStaff() {
			writeError(w, r, domain.Errorf(domain.KindForbidden, "teacher or admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func principal(r *http.Request) domain.Principal {
	p, _ := domain.PrincipalFrom(r.Context())
	return p
}

// checkSelfOrStaff lets students act only on their own records.
func checkSelfOrStaff(r *http.Request, studentID string) error {
	p := principal(r)
	if p.IsStaff() || p.ID == studentID {
		return nil
	}
	return domain.Errorf(domain.KindForbidden, "students may only access their own submissions")
}
