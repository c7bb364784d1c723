package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ozergarant/internal/logging"
)

func TestPool_SameKeyKeepsOrder(t *testing.T) {
	p := NewPool(4, 8)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		require.NoError(t, p.Submit(context.Background(), 42, func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	p.Close()

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestPool_SubmitAfterClose(t *testing.T) {
	p := NewPool(1, 1)
	p.Close()
	assert.ErrorIs(t, p.Submit(context.Background(), 1, func() {}), ErrPoolClosed)
}

func TestPool_SubmitRespectsContext(t *testing.T) {
	p := NewPool(1, 1)
	release := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), 1, func() { <-release }))
	// lane busy, queue of one gets filled
	require.NoError(t, p.Submit(context.Background(), 1, func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Submit(ctx, 1, func() {}), context.DeadlineExceeded)

	close(release)
	p.Close()
}

func TestLaneIndex_NegativeKeys(t *testing.T) {
	for _, k := range []int64{-1, -42, 0, 7} {
		i := laneIndex(k, 3)
		assert.GreaterOrEqual(t, i, 0)
		assert.Less(t, i, 3)
	}
}

type recordingHandler struct {
	mu  sync.Mutex
	ids []int
}

func (h *recordingHandler) Handle(_ context.Context, upd tgbotapi.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, upd.UpdateID)
}

type chanSource struct {
	ch      chan tgbotapi.Update
	stopped bool
}

func (s *chanSource) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return s.ch
}

func (s *chanSource) StopReceivingUpdates() { s.stopped = true }

func TestRunner_PollFeedsHandler(t *testing.T) {
	h := &recordingHandler{}
	r := NewRunner(h, 2, logging.Discard())
	src := &chanSource{ch: make(chan tgbotapi.Update, 6)}
	for i := 1; i <= 3; i++ {
		src.ch <- textMsg(alice, "hi")
		src.ch <- tgbotapi.Update{} // no sender, still handled
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Poll(ctx, src, 1) }()

	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.ids) == 6
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	r.Close()
	assert.True(t, src.stopped)
}

func TestRunner_FeedAfterClose(t *testing.T) {
	r := NewRunner(&recordingHandler{}, 1, logging.Discard())
	r.Close()
	assert.ErrorIs(t, r.Feed(context.Background(), tgbotapi.Update{UpdateID: 1}), ErrPoolClosed)
}
