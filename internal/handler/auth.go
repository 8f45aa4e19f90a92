package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/Kavinnandha/smart-assessment-platform/internal/i18n"
	"github.com/Kavinnandha/smart-assessment-platform/internal/model"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  loginUser `json:"user"`
}

type loginUser struct {
	ID          int64          `json:"id"`
	Username    string         `json:"username"`
	DisplayName string         `json:"display_name"`
	Role        model.UserRole `json:"role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	user, err := h.store.GetUserByUsername(strings.TrimSpace(req.Username))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if user == nil || !user.Active {
		writeError(w, http.StatusUnauthorized, "unauthorized", appI18n.T(r.Context(), "LoginError"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", appI18n.T(r.Context(), "LoginError"))
		return
	}

	token, err := h.store.CreateAuthSession(user.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	slog.Info("user logged in", "user_id", user.ID, "username", user.Username)
	writeJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User: loginUser{
			ID:          user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			Role:        user.Role,
		},
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		if err := h.store.DeleteAuthSession(token); err != nil {
			slog.Warn("failed to delete session", "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// requireAuth resolves the bearer token into a user and stores it in the
// request context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", appI18n.T(r.Context(), "Unauthorized"))
			return
		}
		sess, err := h.store.GetAuthSession(token)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		if sess == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", appI18n.T(r.Context(), "Unauthorized"))
			return
		}
		user, err := h.store.GetUserByID(sess.UserID)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		if user == nil || !user.Active {
			writeError(w, http.StatusUnauthorized, "unauthorized", appI18n.T(r.Context(), "Unauthorized"))
			return
		}
		next.ServeHTTP(w, r.WithContext(model.ContextWithUser(r.Context(), user)))
	})
}

// requireRole allows the request through only for the listed roles. Admins
// are not implicitly allowed; list them explicitly.
func requireRole(roles ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", appI18n.T(r.Context(), "Unauthorized"))
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden", appI18n.T(r.Context(), "Forbidden"))
		})
	}
}
