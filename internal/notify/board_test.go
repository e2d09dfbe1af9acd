package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/go-scripts/chapterhook/internal/messaging"
)

func TestBoardToastsExpire(t *testing.T) {
	b := NewBoard(WithTTL(30 * time.Millisecond))

	b.Show("one")
	b.Show("two")
	assert.Len(t, b.Active(), 2)
	assert.Contains(t, b.Render(), "one")
	assert.Contains(t, b.Render(), "two")

	assert.Eventually(t, func() bool { return len(b.Active()) == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "", b.Render())
	assert.Equal(t, []string{"one", "two"}, b.History())
}

func TestBoardStacksDuplicatesIndependently(t *testing.T) {
	b := NewBoard()

	first := b.Show("same")
	second := b.Show("same")

	assert.NotEqual(t, first, second)
	assert.Len(t, b.Active(), 2)
}

func TestBoardOnChange(t *testing.T) {
	changes := make(chan struct{}, 4)
	b := NewBoard(WithTTL(10*time.Millisecond), WithOnChange(func() { changes <- struct{}{} }))

	b.Toast(context.Background(), "hi")

	for i := 0; i < 2; i++ {
		select {
		case <-changes:
		case <-time.After(time.Second):
			t.Fatal("expected show and expiry callbacks")
		}
	}
}

func TestSinkSwallowsDeliveryFailure(t *testing.T) {
	sink := NewSink(messaging.NewHub(), "missing-tab")
	assert.NotPanics(t, func() {
		sink.Notify(context.Background(), "lost")
	})
}
