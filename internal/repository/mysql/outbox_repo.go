package mysql

import (
	"context"

	"gorm.io/gorm"

	"fanradar/internal/model"
)

type OutboxRepository struct {
	DB *gorm.DB
}

// Append 必须在成员变更的同一事务中调用
func (r *OutboxRepository) Append(ctx context.Context, ev *model.MembershipOutbox) error {
	ev.Status = model.OutboxPending
	return conn(ctx, r.DB).Create(ev).Error
}

func (r *OutboxRepository) List(ctx context.Context, batchSize int) ([]model.MembershipOutbox, error) {
	var list []model.MembershipOutbox
	err := conn(ctx, r.DB).
		Where("status = ?", model.OutboxPending).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error
	return list, err
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id uint64) error {
	return conn(ctx, r.DB).Model(&model.MembershipOutbox{}).Where("id = ?", id).
		Update("status", model.OutboxSent).Error
}

// MarkRetry 失败计数加一，达到 maxRetry 后标记为失败不再投递
func (r *OutboxRepository) MarkRetry(ctx context.Context, ev *model.MembershipOutbox, maxRetry int) error {
	retry := ev.Retry + 1
	status := model.OutboxPending
	if retry >= maxRetry {
		status = model.OutboxFailed
	}
	err := conn(ctx, r.DB).Model(&model.MembershipOutbox{}).Where("id = ?", ev.ID).
		Updates(map[string]any{"retry": retry, "status": status}).Error
	if err == nil {
		ev.Retry, ev.Status = retry, status
	}
	return err
}
