package authsvc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// TokenTTL 签发的凭证有效期（12 小时）
const TokenTTL = 12 * time.Hour

// Service 身份服务：注册、登录、签发凭证。
// 系统里只有这里会铸造凭证，网关只校验。
type Service struct {
	store  *Store
	secret []byte
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewService(store *Store, secret []byte, log *zap.SugaredLogger) *Service {
	return &Service{store: store, secret: secret, ttl: TokenTTL, log: log}
}

// Routes 组装身份服务的端点
func (s *Service) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/register", s.handleRegister)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "service": "auth"})
	})
	return mux
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	var in registerRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || !strings.Contains(in.Email, "@") {
		writeError(w, http.StatusBadRequest, "invalid_input")
		return
	}

	user, err := s.store.Create(in.Username, in.Email)
	switch {
	case errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrIDSpaceExhausted):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.log.Errorf("register: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	s.log.Infof("registered user id=%s username=%s", user.ID, user.Username)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "user": user})
}

// loginRequest 三选一：user_id（数字或 8 位串）、用户名、邮箱
type loginRequest struct {
	Username string          `json:"username"`
	Email    string          `json:"email"`
	UserID   json.RawMessage `json:"user_id"`
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	var in loginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}

	user, err := s.store.Find(rawID(in.UserID), in.Username, in.Email)
	if errors.Is(err, ErrUserNotFound) {
		writeError(w, http.StatusUnauthorized, "user_not_found")
		return
	}
	if err != nil {
		s.log.Errorf("login: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	token, err := s.mintToken(user)
	if err != nil {
		s.log.Errorf("mint token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	s.log.Infof("login id=%s username=%s", user.ID, user.Username)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"user":  user,
		"token": token,
	})
}

// mintToken 签发 HS256 凭证：{sub, username, iat, exp}
func (s *Service) mintToken(u *User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      u.ID,
		"username": u.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(s.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// rawID user_id 字段兼容数字与字符串两种 JSON 形态
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asNumber int
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return fmt.Sprintf("%d", asNumber)
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]interface{}{"ok": false, "error": code})
}
