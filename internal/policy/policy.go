// Package policy decides whether a fandom member may perform an action.
//
// Roles are flat: moderator does not inherit admin-only actions. The engine
// holds no state; callers resolve the actor's role in the fandom beforehand.
package policy

import "fanradar/internal/model"

type Action int

const (
	ActionCreatePost Action = iota + 1
	ActionEditPost
	ActionDeletePost
	ActionChangeMemberRole
	ActionRemoveMember
	ActionUpdateFandom
)

func (a Action) String() string {
	switch a {
	case ActionCreatePost:
		return "create_post"
	case ActionEditPost:
		return "edit_post"
	case ActionDeletePost:
		return "delete_post"
	case ActionChangeMemberRole:
		return "change_member_role"
	case ActionRemoveMember:
		return "remove_member"
	case ActionUpdateFandom:
		return "update_fandom"
	}
	return "unknown"
}

// Actor 发起操作的用户；Role 为空表示不是该 fandom 的成员
type Actor struct {
	UserID uint64
	Role   model.Role
}

// Target 操作对象，目前只有帖子需要作者信息
type Target struct {
	OwnerID uint64
}

// CanAct 按权限表判断
func CanAct(actor Actor, action Action, target Target) bool {
	switch action {
	case ActionEditPost, ActionDeletePost:
		// 作者本人不看角色
		if actor.UserID != 0 && actor.UserID == target.OwnerID {
			return true
		}
		return actor.Role == model.RoleModerator || actor.Role == model.RoleAdmin
	case ActionChangeMemberRole, ActionRemoveMember, ActionUpdateFandom:
		return actor.Role == model.RoleAdmin
	case ActionCreatePost:
		return actor.Role.Valid()
	}
	return false
}
