package main

import (
	"context"
	"testing"

	"github.com/freeeve/chessbot/internal/store"
)

func TestCollect(t *testing.T) {
	ctx := context.Background()
	ps := store.NewMemoryPatterns()
	for _, d := range []store.PatternDelta{
		{PlayerID: "alice", Signature: "e2e4 e7e5 g1f3 b8c6", Wins: 1},
		{PlayerID: "alice", Signature: "d2d4 d7d5 c2c4 e7e6", Losses: 1},
		{PlayerID: "bob", Signature: "e2e4 c7c5 g1f3 d7d6", Draws: 1},
	} {
		if err := ps.Upsert(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	all, err := collect(ctx, ps, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("all players: %d rows, want 3", len(all))
	}

	bob, err := collect(ctx, ps, " bob ")
	if err != nil {
		t.Fatal(err)
	}
	if len(bob) != 1 || bob[0].PlayerID != "bob" {
		t.Errorf("bob rows = %+v", bob)
	}
}
