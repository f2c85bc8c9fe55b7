package service

import (
	"context"

	"fanradar/internal/model"
	"fanradar/internal/policy"
)

// PostGate 帖子变更前的权限检查：作者本人，或所在 fandom 的 moderator/admin
type PostGate struct {
	members MemberStore
}

func NewPostGate(members MemberStore) *PostGate {
	return &PostGate{members: members}
}

// Authorize 不是成员视为没有角色
func (g *PostGate) Authorize(ctx context.Context, actorID uint64, post *model.Post, action policy.Action) error {
	role, err := roleOf(ctx, g.members, post.FandomID, actorID)
	if err != nil {
		return err
	}
	if !policy.CanAct(policy.Actor{UserID: actorID, Role: role}, action, policy.Target{OwnerID: post.UserID}) {
		return forbidden(action)
	}
	return nil
}
