package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"fanradar/internal/model"
	"fanradar/internal/service"
)

type PostHandler struct {
	svc *service.PostService
}

// PostCreateReq 附件通过 multipart 的 media 字段上传，可多个
type PostCreateReq struct {
	Description   string              `json:"description" form:"description"`
	ContentStatus model.ContentStatus `json:"content_status" form:"content_status"`
	ScheduleAt    *time.Time          `json:"schedule_at" form:"schedule_at"`
	Tags          []string            `json:"tags" form:"tags"`
}

type PostUpdateReq struct {
	Description   *string              `json:"description" form:"description"`
	ContentStatus *model.ContentStatus `json:"content_status" form:"content_status"`
	ScheduleAt    *time.Time           `json:"schedule_at" form:"schedule_at"`
	ClearSchedule bool                 `json:"clear_schedule" form:"clear_schedule"`
	Tags          *[]string            `json:"tags" form:"tags"`
}

func NewPostHandler(svc *service.PostService) *PostHandler {
	return &PostHandler{svc: svc}
}

func (h *PostHandler) Create(c *gin.Context) {
	fandomID, valid := paramID(c, "id")
	if !valid {
		return
	}
	var req PostCreateReq
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c)
		return
	}
	files := &openFiles{}
	defer files.close()
	media, err := files.media(c, "media")
	if err != nil {
		badRequest(c)
		return
	}

	post, err := h.svc.Create(c.Request.Context(), currentUser(c), fandomID, service.CreatePostInput{
		Description: req.Description,
		Status:      req.ContentStatus,
		ScheduleAt:  req.ScheduleAt,
		Tags:        req.Tags,
		Media:       media,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, post)
}

// ListByFandom 非成员只能看到已发布的帖子
func (h *PostHandler) ListByFandom(c *gin.Context) {
	fandomID, valid := paramID(c, "id")
	if !valid {
		return
	}
	page, size := pageQuery(c)
	list, total, err := h.svc.ListByFandom(c.Request.Context(), currentUser(c), fandomID, page, size)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, pageData{List: list, Total: total, Page: page, Size: size})
}

func (h *PostHandler) GetInFandom(c *gin.Context) {
	fandomID, valid := paramID(c, "id")
	if !valid {
		return
	}
	postID, valid := paramID(c, "postId")
	if !valid {
		return
	}
	post, err := h.svc.GetInFandom(c.Request.Context(), currentUser(c), fandomID, postID)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, post)
}

func (h *PostHandler) Get(c *gin.Context) {
	postID, valid := paramID(c, "id")
	if !valid {
		return
	}
	post, err := h.svc.Get(c.Request.Context(), currentUser(c), postID)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, post)
}

func (h *PostHandler) Update(c *gin.Context) {
	postID, valid := paramID(c, "id")
	if !valid {
		return
	}
	var req PostUpdateReq
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c)
		return
	}
	files := &openFiles{}
	defer files.close()
	media, err := files.media(c, "media")
	if err != nil {
		badRequest(c)
		return
	}

	post, err := h.svc.Update(c.Request.Context(), currentUser(c), postID, service.UpdatePostInput{
		Description:   req.Description,
		Status:        req.ContentStatus,
		ScheduleAt:    req.ScheduleAt,
		ClearSchedule: req.ClearSchedule,
		Tags:          req.Tags,
		Media:         media,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, post)
}

// DeletePost 作者本人或 moderator/admin
func (h *PostHandler) DeletePost(c *gin.Context) {
	postID, valid := paramID(c, "id")
	if !valid {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), currentUser(c), postID); err != nil {
		writeError(c, err)
		return
	}
	okMsg(c, "ok")
}
