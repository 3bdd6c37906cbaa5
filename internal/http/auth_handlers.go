package http

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sally802528/grade-query-education-system/internal/crypto"
	"github.com/sally802528/grade-query-education-system/internal/model"
	"github.com/sally802528/grade-query-education-system/internal/repository"
	"github.com/sally802528/grade-query-education-system/internal/throttle"
)

const messageBadCredentials = "帳號或密碼錯誤"

type loginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

type userResponse struct {
	UserID string     `json:"userId"`
	Name   string     `json:"name"`
	Role   model.Role `json:"role"`
	Class  *string    `json:"class"`
	Email  *string    `json:"email,omitempty"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

func toUserResponse(user model.User) userResponse {
	return userResponse{
		UserID: user.UserID,
		Name:   user.Name,
		Role:   user.Role,
		Class:  user.Class,
		Email:  user.Email,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "請求格式錯誤")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "請提供帳號與密碼")
		return
	}

	ctx := r.Context()
	if err := s.throttle.Allow(ctx, req.UserID); err != nil {
		if errors.Is(err, throttle.ErrLocked) {
			writeError(w, http.StatusTooManyRequests, "登入失敗次數過多，請稍後再試")
			return
		}
		log.Printf("login throttle check failed: %v", err)
	}

	user, err := s.store.GetUser(ctx, req.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Printf("login lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "伺服器錯誤")
		return
	}
	hash := user.PasswordHash
	if err != nil {
		hash = crypto.DummyHash()
	}
	if s.checkPassword(hash, req.Password) != nil || err != nil {
		if err := s.throttle.Fail(ctx, req.UserID); err != nil {
			log.Printf("login throttle record failed: %v", err)
		}
		writeError(w, http.StatusUnauthorized, messageBadCredentials)
		return
	}

	if err := s.throttle.Reset(ctx, req.UserID); err != nil {
		log.Printf("login throttle reset failed: %v", err)
	}

	token, expiresAt, err := s.issuer.Issue(user.UserID, user.Role)
	if err != nil {
		log.Printf("issue token failed: %v", err)
		writeError(w, http.StatusInternalServerError, "伺服器錯誤")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      toUserResponse(user),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	user, err := s.store.GetUser(r.Context(), identity.ID)
	if err != nil {
		s.storeError(w, err, "找不到使用者")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// storeError maps repository sentinels onto status codes. Anything else is
// logged and reported as 500.
func (s *Server) storeError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "資料衝突")
	default:
		log.Printf("store error: %v", err)
		writeError(w, http.StatusInternalServerError, "伺服器錯誤")
	}
}
