package movecheck

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/freeeve/chessbot/internal/logx"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL string
	// Secret signs a short-lived service token for each request. Empty
	// sends no Authorization header.
	Secret  string
	Subject string // token subject when ctx carries no player

	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// Client submits moves to the remote move service.
type Client struct {
	cfg  ClientConfig
	base *url.URL
	http *http.Client
	log  zerolog.Logger
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid move service url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:  cfg,
		base: base,
		http: hc,
		log:  logx.Component(cfg.Logger, "movecheck"),
	}, nil
}

type errorBody struct {
	Error string `json:"error"`
}

// Submit posts req to /games/{gameId}/move.
func (c *Client) Submit(ctx context.Context, req MoveRequest) (MoveResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return MoveResponse{}, err
	}
	endpoint := c.base.JoinPath("games", req.GameID, "move")
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return MoveResponse{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if c.cfg.Secret != "" {
		token, err := c.token(c.subject(ctx))
		if err != nil {
			return MoveResponse{}, fmt.Errorf("sign token: %w", err)
		}
		hreq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return MoveResponse{}, ctx.Err()
		}
		return MoveResponse{}, &StatusError{Code: http.StatusBadGateway, Message: err.Error(), Err: ErrServer}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return MoveResponse{}, &StatusError{Code: http.StatusBadGateway, Message: err.Error(), Err: ErrServer}
	}

	c.log.Debug().
		Str("game", req.GameID).
		Str("move", req.UCI()).
		Str("player", PlayerFrom(ctx)).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("move submitted")

	if resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		return MoveResponse{}, StatusFor(resp.StatusCode, eb.Error)
	}

	var out MoveResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return MoveResponse{}, &StatusError{Code: http.StatusBadGateway, Message: "decode response: " + err.Error(), Err: ErrServer}
	}
	if !out.Success {
		return out, StatusFor(http.StatusBadRequest, "move rejected")
	}
	return out, nil
}

// subject is the acting player of ctx, or the configured subject.
func (c *Client) subject(ctx context.Context) string {
	if p := PlayerFrom(ctx); p != "" {
		return p
	}
	return c.cfg.Subject
}

func (c *Client) token(subject string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.Secret))
}

// IsRetryable reports whether a failed submit may succeed unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServer)
}
