package api

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lastmile/internal/model"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("s1")
	other := b.Subscribe("s2")

	evt := model.Event{Type: "test.event", Data: map[string]any{"x": 1}}
	b.Publish("s1", evt)

	select {
	case got := <-ch:
		assert.Equal(t, evt, got)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	assert.Empty(t, other)

	b.Unsubscribe("s1", ch)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
	assert.Equal(t, 0, b.Subscribers("s1"))

	// a second unsubscribe is a no-op
	b.Unsubscribe("s1", ch)
	b.Unsubscribe("s2", other)
}

func TestBrokerPublishDoesNotBlock(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("s1")
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Publish("s1", model.Event{Type: "flood"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Len(t, ch, cap(ch))
	b.Unsubscribe("s1", ch)
}

func TestRedisBroker(t *testing.T) {
	mr := miniredis.RunT(t)
	log, _ := test.NewNullLogger()
	b, err := NewRedisBroker("redis://"+mr.Addr(), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	ch := b.Subscribe("s1")
	b.Publish("s1", model.Event{Type: model.EventDeliveryCompleted, Data: map[string]any{"orderId": "loc-2"}})

	select {
	case got := <-ch:
		assert.Equal(t, model.EventDeliveryCompleted, got.Type)
		assert.Equal(t, "loc-2", got.Data["orderId"])
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for redis event")
	}

	b.Unsubscribe("s1", ch)
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisBrokerBadURL(t *testing.T) {
	log, _ := test.NewNullLogger()
	_, err := NewRedisBroker("not-a-url", log)
	assert.Error(t, err)
}
