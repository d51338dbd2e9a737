package movecheck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/freeeve/chessbot/internal/board"
	"github.com/golang-jwt/jwt/v5"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{400, ErrInvalidMove},
		{401, ErrUnauthorized},
		{403, ErrUnauthorized},
		{404, ErrGameNotFound},
		{409, ErrStaleTurn},
		{500, ErrServer},
		{503, ErrServer},
	}
	for _, tt := range tests {
		err := StatusFor(tt.code, "x")
		if !errors.Is(err, tt.want) {
			t.Errorf("StatusFor(%d) = %v, want %v", tt.code, err, tt.want)
		}
		if Code(err) != tt.code {
			t.Errorf("Code = %d, want %d", Code(err), tt.code)
		}
	}
	if Code(errors.New("plain")) != 500 {
		t.Error("plain errors should map to 500")
	}
}

func TestParseMove(t *testing.T) {
	req, err := ParseMove("g1", "e7e8q")
	if err != nil {
		t.Fatal(err)
	}
	if req.From != "e7" || req.To != "e8" || req.Promotion != "q" || req.UCI() != "e7e8q" {
		t.Errorf("req = %+v", req)
	}
	if req, _ := ParseMove("g1", "e7e8Q"); req.Promotion != "q" {
		t.Errorf("promotion not normalized: %+v", req)
	}
	if _, err := ParseMove("g1", "e9e4"); !errors.Is(err, ErrInvalidMove) {
		t.Errorf("bad move err = %v", err)
	}
}

func TestLocal_DrawByInsufficientMaterial(t *testing.T) {
	g, err := board.NewGame("8/8/8/4k3/8/8/3r4/4K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	l := &Local{Lookup: func(string) (*board.Game, bool) { return g, true }}
	ctx := context.Background()

	resp, err := l.Submit(ctx, MoveRequest{GameID: "g1", From: "e1", To: "d2"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != StatusDraw || resp.Result != "1/2-1/2" {
		t.Errorf("resp = %+v", resp)
	}
	if _, err := l.Submit(ctx, MoveRequest{GameID: "g1", From: "e5", To: "e4"}); !errors.Is(err, ErrStaleTurn) {
		t.Errorf("move after draw err = %v", err)
	}
}

func TestLocal(t *testing.T) {
	g, _ := board.NewGame("")
	l := &Local{Lookup: func(id string) (*board.Game, bool) {
		return g, id == "g1"
	}}
	ctx := context.Background()

	resp, err := l.Submit(ctx, MoveRequest{GameID: "g1", From: "e2", To: "e4"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Turn != "b" || resp.Status != StatusActive || resp.PGN != "1. e4" {
		t.Errorf("resp = %+v", resp)
	}

	if _, err := l.Submit(ctx, MoveRequest{GameID: "g1", From: "e4", To: "e6"}); !errors.Is(err, ErrInvalidMove) {
		t.Errorf("illegal move err = %v", err)
	}
	if _, err := l.Submit(ctx, MoveRequest{GameID: "nope", From: "e7", To: "e5"}); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("unknown game err = %v", err)
	}

	for _, mv := range []string{"e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7"} {
		req, _ := ParseMove("g1", mv)
		if resp, err = l.Submit(ctx, req); err != nil {
			t.Fatalf("%s: %v", mv, err)
		}
	}
	if resp.Status != StatusCheckmate || resp.Result != "1-0" {
		t.Errorf("final resp = %+v", resp)
	}
	if _, err := l.Submit(ctx, MoveRequest{GameID: "g1", From: "a7", To: "a6"}); !errors.Is(err, ErrStaleTurn) {
		t.Errorf("move after mate err = %v", err)
	}
}

func TestClientSubmit(t *testing.T) {
	const secret = "s3cret"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		claims := &jwt.RegisteredClaims{}
		if _, err := jwt.ParseWithClaims(auth, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}); err != nil || claims.Subject != "player-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(errorBody{Error: "bad token"})
			return
		}

		var req MoveRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch {
		case r.URL.Path != "/api/games/"+req.GameID+"/move":
			w.WriteHeader(http.StatusNotFound)
		case req.GameID == "stale":
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(errorBody{Error: "not your turn"})
		case req.GameID == "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_ = json.NewEncoder(w).Encode(MoveResponse{Success: true, FEN: "fen", Turn: "b", Status: StatusActive})
		}
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL + "/api/", Secret: secret, Subject: "player-1"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	resp, err := c.Submit(ctx, MoveRequest{GameID: "g1", From: "e2", To: "e4"})
	if err != nil || resp.Turn != "b" {
		t.Fatalf("Submit = %+v, %v", resp, err)
	}

	_, err = c.Submit(ctx, MoveRequest{GameID: "stale", From: "e2", To: "e4"})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 409 || se.Message != "not your turn" || !errors.Is(err, ErrStaleTurn) {
		t.Errorf("stale err = %v", err)
	}
	if _, err := c.Submit(ctx, MoveRequest{GameID: "broken"}); !IsRetryable(err) {
		t.Errorf("500 err = %v, want retryable", err)
	}

	// The player in ctx signs the token, not the configured subject.
	if _, err := c.Submit(WithPlayer(ctx, "intruder"), MoveRequest{GameID: "g1", From: "e2", To: "e4"}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("other player's token err = %v, want unauthorized", err)
	}
	service, _ := NewClient(ClientConfig{BaseURL: srv.URL + "/api", Secret: secret})
	if _, err := service.Submit(WithPlayer(ctx, "player-1"), MoveRequest{GameID: "g1", From: "e2", To: "e4"}); err != nil {
		t.Errorf("Submit for player-1 = %v", err)
	}

	anon, _ := NewClient(ClientConfig{BaseURL: srv.URL + "/api"})
	if _, err := anon.Submit(ctx, MoveRequest{GameID: "g1"}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("unsigned err = %v", err)
	}

	if _, err := NewClient(ClientConfig{BaseURL: "not a url"}); err == nil {
		t.Error("expected error for bad url")
	}
}
