package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestDialRedisReturnsClientWhenReachable(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := dialRedis(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if rdb == nil {
		t.Fatal("reachable redis but no client returned")
	}
	rdb.Close()
}

func TestDialRedisNilWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	// An unreachable server must yield a nil client so the dispatcher
	// lock falls back to the Postgres advisory backend.
	rdb, err := dialRedis(context.Background(), "redis://"+addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if rdb != nil {
		t.Fatal("unreachable redis but a client was returned")
	}
}

func TestDialRedisRejectsBadURL(t *testing.T) {
	if _, err := dialRedis(context.Background(), "not-a-url"); err == nil {
		t.Fatal("malformed url accepted")
	}
}

func TestDialRedisSkipsWhenUnconfigured(t *testing.T) {
	rdb, err := dialRedis(context.Background(), "")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if rdb != nil {
		t.Fatal("client returned with no url configured")
	}
}
