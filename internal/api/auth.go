package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/susu3304/expensebot/internal/session"
)

var errUnauthorized = errors.New("session token missing or invalid")

// Claims binds a token to one account session. It proves the caller holds
// the session, not who the account is.
type Claims struct {
	SessionID string `json:"session_id"`
	Account   string `json:"account"`
	jwt.RegisteredClaims
}

type contextKey string

const sessionInfoKey contextKey = "session"

func (a *API) issueToken(sessionID, account string) (string, error) {
	now := time.Now()
	ttl := a.config.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	claims := &Claims{
		SessionID: sessionID,
		Account:   account,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        generateRandomString(16),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(a.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}
	return tokenString, nil
}

func (a *API) parseToken(r *http.Request) (*Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errUnauthorized
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		return nil, errUnauthorized
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, errUnauthorized
	}
	return claims, nil
}

// authorize checks that the caller may act on sessionID. Guest sessions are
// open to whoever holds the ID; account sessions need a matching token.
func (a *API) authorize(r *http.Request, sessionID string) (session.Info, error) {
	info, err := a.store.Info(sessionID)
	if err != nil {
		return session.Info{}, err
	}
	if info.Kind == session.Guest {
		return info, nil
	}
	claims, err := a.parseToken(r)
	if err != nil {
		return session.Info{}, err
	}
	if claims.SessionID != sessionID {
		return session.Info{}, errUnauthorized
	}
	return info, nil
}

// Middleware
func (a *API) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := a.authorize(r, mux.Vars(r)["session_id"])
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionInfoKey, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) session.Info {
	info, _ := ctx.Value(sessionInfoKey).(session.Info)
	return info
}

type loginRequest struct {
	Account   string `json:"account"`
	SessionID string `json:"sessionId"`
}

// Auth handlers
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.SessionID != "" {
		if _, err := a.authorize(r, req.SessionID); err != nil {
			writeError(w, err)
			return
		}
	}

	id, l, err := a.store.Login(r.Context(), req.Account, req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := a.issueToken(id, l.Account())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"sessionId":    id,
		"account":      l.Account(),
		"token":        token,
		"expenseCount": len(l.Expenses()),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := a.authorize(r, req.SessionID); err != nil {
		writeError(w, err)
		return
	}
	if err := a.store.Logout(r.Context(), req.SessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "logged out",
	})
}
