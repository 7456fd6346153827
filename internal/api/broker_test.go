package api

import (
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    redis "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestBrokerPublishSubscribe(t *testing.T) {
    b := NewBroker()
    rid := "r1"
    ch := b.Subscribe(rid)

    evt := SSEEvent{Type: "test.event", Data: map[string]any{"x": 1}}
    b.Publish(rid, evt)
    b.Publish("other", SSEEvent{Type: "ignored"})

    select {
    case got := <-ch:
        if got.Type != evt.Type { t.Fatalf("got type %s, want %s", got.Type, evt.Type) }
        if got.Data["x"].(int) != 1 { t.Fatalf("bad payload: %+v", got.Data) }
    case <-time.After(200 * time.Millisecond):
        t.Fatal("timeout waiting for event")
    }

    b.Unsubscribe(rid, ch)
    if _, ok := <-ch; ok { t.Fatal("channel should be closed after unsubscribe") }
    // second unsubscribe is a no-op
    b.Unsubscribe(rid, ch)
}

func TestPublishRunReachesAllRuns(t *testing.T) {
    b := NewBroker()
    all := b.Subscribe(AllRuns)
    defer b.Unsubscribe(AllRuns, all)
    one := b.Subscribe("run-1")
    defer b.Unsubscribe("run-1", one)

    publishRun(b, "run-1", SSEEvent{Type: "solve.started"})
    for _, ch := range []chan SSEEvent{all, one} {
        select {
        case got := <-ch:
            assert.Equal(t, "solve.started", got.Type)
        case <-time.After(200 * time.Millisecond):
            t.Fatal("timeout waiting for event")
        }
    }
}

func TestRedisBrokerPublishSubscribe(t *testing.T) {
    mr := miniredis.RunT(t)
    b := newRedisBroker(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

    ch := b.Subscribe("run-1")
    b.Publish("run-1", SSEEvent{Type: "solve.completed", Data: map[string]any{"unassignable": 2}})

    select {
    case got := <-ch:
        assert.Equal(t, "solve.completed", got.Type)
        // numbers come back as float64 after the JSON round trip
        assert.Equal(t, float64(2), got.Data["unassignable"])
    case <-time.After(2 * time.Second):
        t.Fatal("timeout waiting for redis event")
    }

    b.Unsubscribe("run-1", ch)
    select {
    case _, ok := <-ch:
        require.False(t, ok, "channel closes once the subscription is gone")
    case <-time.After(2 * time.Second):
        t.Fatal("channel not closed after unsubscribe")
    }
}

func TestNewRedisBrokerRejectsBadURL(t *testing.T) {
    _, err := NewRedisBroker("not-a-url")
    assert.Error(t, err)
}
