package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/IamSamk/Portfolify/pkg/jwt"
)

// requireAdmin ensures the request carries a valid admin session token
// before invoking the handler.
func (r *Router) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		token, err := bearerToken(req.Header.Get("Authorization"))
		if err != nil {
			r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		claims, err := jwt.Parse(token, r.jwtSecret)
		if err != nil {
			r.logger.Warn("admin token validation failed", "error", err, "path", req.URL.Path)
			writeError(w, http.StatusUnauthorized, "authentication failed")
			return
		}
		if claims.Role != jwt.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, req)
	}
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
