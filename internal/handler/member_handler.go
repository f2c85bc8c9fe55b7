package handler

import (
	"github.com/gin-gonic/gin"

	"fanradar/internal/model"
	"fanradar/internal/service"
)

type MemberHandler struct {
	svc *service.MembershipService
}

type ChangeRoleReq struct {
	Role model.Role `json:"role" binding:"required"`
}

func NewMemberHandler(svc *service.MembershipService) *MemberHandler {
	return &MemberHandler{svc: svc}
}

func (h *MemberHandler) Join(c *gin.Context) {
	fandomID, valid := paramID(c, "id")
	if !valid {
		return
	}
	member, err := h.svc.Join(c.Request.Context(), currentUser(c), fandomID)
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, member)
}

func (h *MemberHandler) Leave(c *gin.Context) {
	fandomID, valid := paramID(c, "id")
	if !valid {
		return
	}
	if err := h.svc.Leave(c.Request.Context(), currentUser(c), fandomID); err != nil {
		writeError(c, err)
		return
	}
	okMsg(c, "ok")
}

// Remove 管理员移除成员
func (h *MemberHandler) Remove(c *gin.Context) {
	fandomID, valid := paramID(c, "id")
	if !valid {
		return
	}
	targetID, valid := paramID(c, "userId")
	if !valid {
		return
	}
	if err := h.svc.Remove(c.Request.Context(), currentUser(c), targetID, fandomID); err != nil {
		writeError(c, err)
		return
	}
	okMsg(c, "ok")
}

func (h *MemberHandler) ChangeRole(c *gin.Context) {
	fandomID, valid := paramID(c, "id")
	if !valid {
		return
	}
	targetID, valid := paramID(c, "userId")
	if !valid {
		return
	}
	var req ChangeRoleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	member, err := h.svc.ChangeRole(c.Request.Context(), currentUser(c), targetID, fandomID, req.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, member)
}

func (h *MemberHandler) List(c *gin.Context) {
	fandomID, valid := paramID(c, "id")
	if !valid {
		return
	}
	page, size := pageQuery(c)
	list, total, err := h.svc.Members(c.Request.Context(), fandomID, page, size)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, pageData{List: list, Total: total, Page: page, Size: size})
}

// Me 当前用户在该 fandom 的成员信息
func (h *MemberHandler) Me(c *gin.Context) {
	fandomID, valid := paramID(c, "id")
	if !valid {
		return
	}
	member, err := h.svc.Membership(c.Request.Context(), fandomID, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, member)
}
