package distlock

import (
	"testing"
	"time"
)

func TestNewLockSelectsBackend(t *testing.T) {
	client := newTestRedis(t)

	if _, ok := NewLock(client, nil, "dispatch", time.Minute).(*RedisLock); !ok {
		t.Fatal("redis client available but redis backend not selected")
	}
	if _, ok := NewLock(nil, nil, "dispatch", time.Minute).(*PGAdvisoryLock); !ok {
		t.Fatal("no redis client but advisory lock backend not selected")
	}
}
