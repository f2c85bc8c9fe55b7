package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fanradar/internal/model"
	"fanradar/internal/pkg"
)

type OutboxStore interface {
	List(ctx context.Context, batchSize int) ([]model.MembershipOutbox, error)
	MarkSent(ctx context.Context, id uint64) error
	MarkRetry(ctx context.Context, ev *model.MembershipOutbox, maxRetry int) error
}

// Publisher 由 pkg.KafkaProducer 实现
type Publisher interface {
	Send(ctx context.Context, key, eventType string, value []byte) error
}

// OutboxRelayer 定时从 outbox 表取出成员事件投递到 kafka
type OutboxRelayer struct {
	repo      OutboxStore
	publisher Publisher
	batchSize int
	interval  time.Duration
	maxRetry  int
}

func NewOutboxRelayer(repo OutboxStore, publisher Publisher, batchSize int, interval time.Duration, maxRetry int) *OutboxRelayer {
	if batchSize <= 0 {
		batchSize = 200
	}
	if interval <= 0 {
		interval = time.Second
	}
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return &OutboxRelayer{
		repo:      repo,
		publisher: publisher,
		batchSize: batchSize,
		interval:  interval,
		maxRetry:  maxRetry,
	}
}

// Run 阻塞直到 ctx 结束
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.drainOnce(ctx)
		}
	}
}

// drainOnce 投递一批，返回成功条数
func (r *OutboxRelayer) drainOnce(ctx context.Context) int {
	rows, err := r.repo.List(ctx, r.batchSize)
	if err != nil {
		pkg.Logger.Warn("outbox query", zap.Error(err))
		return 0
	}
	sent := 0
	for i := range rows {
		ev := &rows[i]
		if err := r.publisher.Send(ctx, pkg.MakeKeyFromID(ev.FandomID), ev.EventType, []byte(ev.Payload)); err != nil {
			pkg.Logger.Warn("outbox send",
				zap.Uint64("id", ev.ID), zap.String("event", ev.EventType), zap.Int("retry", ev.Retry), zap.Error(err))
			if err := r.repo.MarkRetry(ctx, ev, r.maxRetry); err != nil {
				pkg.Logger.Warn("outbox mark retry", zap.Uint64("id", ev.ID), zap.Error(err))
			}
			continue
		}
		if err := r.repo.MarkSent(ctx, ev.ID); err != nil {
			pkg.Logger.Warn("outbox mark sent", zap.Uint64("id", ev.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}
