package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryBus_PublishSubscribe(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()

	bus.Publish(Event{Type: TypeSessionIssued, ActorID: "acc-1", Status: StatusSuccess})

	got := <-ch
	assert.Equal(t, TypeSessionIssued, got.Type)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())

	unsubscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)

	// Publishing with no subscribers is a no-op.
	bus.Publish(Event{Type: TypeSessionRevoked})
}

func TestInMemoryBus_DropsWhenFull(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	var dropped []Type
	bus.OnDrop(func(e Event) { dropped = append(dropped, e.Type) })

	_, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer; i++ {
		bus.Publish(Event{Type: TypeCodeIssued})
	}
	bus.Publish(Event{Type: TypeLoginFailed})

	require.Equal(t, uint64(1), bus.Dropped())
	assert.Equal(t, []Type{TypeLoginFailed}, dropped)
}
