package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// PlayerClaims identify the player behind a request.
type PlayerClaims struct {
	PlayerID string `json:"playerId"`
	jwt.RegisteredClaims
}

// Auth resolves the player of each request. With a secret it requires an
// HS256 bearer token (or a token query parameter, for websocket clients);
// without one it trusts the X-Player-ID header, for local development.
type Auth struct {
	secret []byte
}

// NewAuth creates the auth middleware. An empty secret enables dev mode.
func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// DevMode reports whether unsigned player ids are accepted.
func (a *Auth) DevMode() bool {
	return len(a.secret) == 0
}

// IssueToken signs a token for playerID.
func (a *Auth) IssueToken(playerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := PlayerClaims{
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Validate parses and checks a token.
func (a *Auth) Validate(tokenString string) (*PlayerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PlayerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*PlayerClaims)
	if !ok || !token.Valid || claims.PlayerID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Middleware rejects requests without a player.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		player, err := a.player(r)
		if err != nil {
			writeStatus(w, http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
			return
		}
		ctx := context.WithValue(r.Context(), playerIDKey, player)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) player(r *http.Request) (string, error) {
	if a.DevMode() {
		id := strings.TrimSpace(r.Header.Get("X-Player-ID"))
		if id == "" {
			id = r.URL.Query().Get("playerId")
		}
		if id == "" {
			return "", errors.New("missing X-Player-ID header")
		}
		return id, nil
	}

	token := r.URL.Query().Get("token")
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", errors.New("invalid authorization header format")
		}
		token = parts[1]
	}
	if token == "" {
		return "", errors.New("authorization required")
	}
	claims, err := a.Validate(token)
	if err != nil {
		return "", err
	}
	return claims.PlayerID, nil
}
