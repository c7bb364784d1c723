package bot

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ozergarant/internal/logging"
)

type Handler interface {
	Handle(ctx context.Context, upd tgbotapi.Update)
}

// UpdateSource is the long-polling half of *tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Runner feeds updates into the handler through the per-user pool. Updates
// come either from long polling (Poll) or from the webhook endpoint (Feed).
type Runner struct {
	handler Handler
	pool    *Pool
	log     logging.Logger
}

func NewRunner(h Handler, workers int, log logging.Logger) *Runner {
	return &Runner{
		handler: h,
		pool:    NewPool(workers, 0),
		log:     log.With("component", "bot"),
	}
}

// Feed schedules one update. Updates without a sender share lane 0.
func (r *Runner) Feed(ctx context.Context, upd tgbotapi.Update) error {
	// the job outlives the webhook request
	jobCtx := context.WithoutCancel(ctx)
	err := r.pool.Submit(ctx, UserID(upd), func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error(jobCtx, "update handler panicked", "update_id", upd.UpdateID, "panic", rec)
			}
		}()
		r.handler.Handle(jobCtx, upd)
	})
	if err != nil {
		r.log.Warn(ctx, "update dropped", "update_id", upd.UpdateID, "error", err)
	}
	return err
}

// Poll blocks until ctx is done.
func (r *Runner) Poll(ctx context.Context, src UpdateSource, timeout int) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = timeout
	updates := src.GetUpdatesChan(cfg)
	defer src.StopReceivingUpdates()

	r.log.Info(ctx, "long polling started", "timeout", timeout)
	for {
		select {
		case <-ctx.Done():
			r.log.Info(ctx, "long polling stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return errors.New("telegram updates channel closed")
			}
			if err := r.Feed(ctx, upd); errors.Is(err, ErrPoolClosed) {
				return err
			}
		}
	}
}

// Close waits for the queued updates to be handled.
func (r *Runner) Close() {
	r.pool.Close()
}
