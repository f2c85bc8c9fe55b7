package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"fanradar/internal/model"
	"fanradar/internal/policy"
	"fanradar/internal/repository"
)

// MembershipService fandom 成员的加入、退出、移除和角色变更
//
// 所有变更都在 fandom 行锁内完成：先校验策略和"至少一个管理员"约束，再写库，
// 成员事件与变更写在同一事务中。
type MembershipService struct {
	tx      Transactor
	users   UserDirectory
	fandoms FandomStore
	members MemberStore
	events  EventLog
}

func NewMembershipService(tx Transactor, users UserDirectory, fandoms FandomStore, members MemberStore, events EventLog) *MembershipService {
	return &MembershipService{
		tx:      tx,
		users:   users,
		fandoms: fandoms,
		members: members,
		events:  events,
	}
}

// Join 以 member 身份加入；唯一索引兜底并发重复加入
func (s *MembershipService) Join(ctx context.Context, userID, fandomID uint64) (*model.Member, error) {
	fandom, err := s.fandoms.FindByID(ctx, fandomID)
	if err != nil {
		return nil, entityErr(err, "fandom")
	}
	if !fandom.IsActive {
		return nil, &ForbiddenError{Action: "join"}
	}

	var member *model.Member
	err = s.tx.WithFandomLock(ctx, fandomID, func(ctx context.Context) error {
		if _, err := s.members.Find(ctx, fandomID, userID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		m := &model.Member{FandomID: fandomID, UserID: userID, Role: model.RoleMember}
		if err := s.members.Create(ctx, m); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyMember
			}
			return err
		}
		member = m
		return s.emit(ctx, model.EventMemberJoined, fandomID, userID, userID, nil)
	})
	if err != nil {
		return nil, entityErr(err, "fandom")
	}
	return member, nil
}

// Leave 唯一的管理员不能退出
func (s *MembershipService) Leave(ctx context.Context, userID, fandomID uint64) error {
	err := s.tx.WithFandomLock(ctx, fandomID, func(ctx context.Context) error {
		m, err := s.findMember(ctx, fandomID, userID)
		if err != nil {
			return err
		}
		if err := s.ensureNotLastAdmin(ctx, m); err != nil {
			return err
		}
		if err := s.members.Delete(ctx, m.ID); err != nil {
			return err
		}
		return s.emit(ctx, model.EventMemberLeft, fandomID, userID, userID, map[string]any{"role": m.Role})
	})
	return entityErr(err, "fandom")
}

// Remove 管理员移除其他成员，移除自己请用 Leave
func (s *MembershipService) Remove(ctx context.Context, actorID, targetID, fandomID uint64) error {
	if _, err := s.users.FindByID(ctx, targetID); err != nil {
		return entityErr(err, "user")
	}

	err := s.tx.WithFandomLock(ctx, fandomID, func(ctx context.Context) error {
		if err := s.authorize(ctx, actorID, fandomID, policy.ActionRemoveMember); err != nil {
			return err
		}
		if actorID == targetID {
			return ErrSelfAction
		}
		m, err := s.findMember(ctx, fandomID, targetID)
		if err != nil {
			return err
		}
		if err := s.ensureNotLastAdmin(ctx, m); err != nil {
			return err
		}
		if err := s.members.Delete(ctx, m.ID); err != nil {
			return err
		}
		return s.emit(ctx, model.EventMemberRemoved, fandomID, targetID, actorID, map[string]any{"role": m.Role})
	})
	return entityErr(err, "fandom")
}

// ChangeRole 角色不变时直接返回原成员，不产生事件
func (s *MembershipService) ChangeRole(ctx context.Context, actorID, targetID, fandomID uint64, role model.Role) (*model.Member, error) {
	if !role.Valid() {
		return nil, invalid("role", "must be one of member, moderator, admin")
	}
	if _, err := s.users.FindByID(ctx, targetID); err != nil {
		return nil, entityErr(err, "user")
	}

	var member *model.Member
	err := s.tx.WithFandomLock(ctx, fandomID, func(ctx context.Context) error {
		if err := s.authorize(ctx, actorID, fandomID, policy.ActionChangeMemberRole); err != nil {
			return err
		}
		m, err := s.findMember(ctx, fandomID, targetID)
		if err != nil {
			return err
		}
		if m.Role == role {
			member = m
			return nil
		}
		if role != model.RoleAdmin {
			if err := s.ensureNotLastAdmin(ctx, m); err != nil {
				return err
			}
		}

		old := m.Role
		if err := s.members.UpdateRole(ctx, m.ID, role); err != nil {
			return err
		}
		m.Role = role
		member = m
		return s.emit(ctx, model.EventMemberRoleChanged, fandomID, targetID, actorID, map[string]any{
			"old_role": old,
			"new_role": role,
		})
	})
	if err != nil {
		return nil, entityErr(err, "fandom")
	}
	return member, nil
}

// RoleOf 非成员返回空角色
func (s *MembershipService) RoleOf(ctx context.Context, fandomID, userID uint64) (model.Role, error) {
	return roleOf(ctx, s.members, fandomID, userID)
}

func (s *MembershipService) Membership(ctx context.Context, fandomID, userID uint64) (*model.Member, error) {
	if _, err := s.fandoms.FindByID(ctx, fandomID); err != nil {
		return nil, entityErr(err, "fandom")
	}
	return s.findMember(ctx, fandomID, userID)
}

func (s *MembershipService) Members(ctx context.Context, fandomID uint64, page, size int) ([]model.Member, int64, error) {
	if _, err := s.fandoms.FindByID(ctx, fandomID); err != nil {
		return nil, 0, entityErr(err, "fandom")
	}
	offset, limit := Page(page, size)
	return s.members.ListByFandom(ctx, fandomID, offset, limit)
}

func (s *MembershipService) authorize(ctx context.Context, actorID, fandomID uint64, action policy.Action) error {
	role, err := roleOf(ctx, s.members, fandomID, actorID)
	if err != nil {
		return err
	}
	if !policy.CanAct(policy.Actor{UserID: actorID, Role: role}, action, policy.Target{}) {
		return forbidden(action)
	}
	return nil
}

func (s *MembershipService) findMember(ctx context.Context, fandomID, userID uint64) (*model.Member, error) {
	m, err := s.members.Find(ctx, fandomID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotMember
	}
	return m, err
}

// ensureNotLastAdmin 在锁内计数，m 不是管理员时直接通过
func (s *MembershipService) ensureNotLastAdmin(ctx context.Context, m *model.Member) error {
	if m.Role != model.RoleAdmin {
		return nil
	}
	n, err := s.members.CountByRole(ctx, m.FandomID, model.RoleAdmin)
	if err != nil {
		return err
	}
	if n <= 1 {
		return ErrLastAdmin
	}
	return nil
}

func (s *MembershipService) emit(ctx context.Context, event string, fandomID, userID, actorID uint64, extra map[string]any) error {
	return appendEvent(ctx, s.events, event, fandomID, userID, actorID, extra)
}

func appendEvent(ctx context.Context, events EventLog, event string, fandomID, userID, actorID uint64, extra map[string]any) error {
	body := map[string]any{
		"event":      event,
		"event_time": time.Now().UTC().Format(time.RFC3339Nano),
		"fandom_id":  fandomID,
		"user_id":    userID,
		"actor_id":   actorID,
	}
	for k, v := range extra {
		body[k] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return events.Append(ctx, &model.MembershipOutbox{
		EventType: event,
		FandomID:  fandomID,
		UserID:    userID,
		ActorID:   actorID,
		Payload:   string(payload),
	})
}

func roleOf(ctx context.Context, members MemberStore, fandomID, userID uint64) (model.Role, error) {
	m, err := members.Find(ctx, fandomID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

// entityErr 把仓储层的 ErrNotFound 转成对应实体的 NotFoundError
func entityErr(err error, entity string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(entity)
	}
	return err
}
