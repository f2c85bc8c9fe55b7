package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"fanradar/internal/service"
)

type SubcategoryHandler struct {
	svc *service.SubcategoryService
}

type CategoryCreateReq struct {
	Name string `json:"name"`
}

type SubcategoryCreateReq struct {
	CategoryID uint64 `json:"category_id" binding:"required"`
	Name       string `json:"name"`
}

func NewSubcategoryHandler(svc *service.SubcategoryService) *SubcategoryHandler {
	return &SubcategoryHandler{svc: svc}
}

func (h *SubcategoryHandler) CreateCategory(c *gin.Context) {
	var req CategoryCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	category, err := h.svc.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, category)
}

func (h *SubcategoryHandler) Create(c *gin.Context) {
	var req SubcategoryCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	sub, err := h.svc.Create(c.Request.Context(), req.CategoryID, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, sub)
}

func (h *SubcategoryHandler) List(c *gin.Context) {
	categoryID, _ := strconv.ParseUint(c.Query("category_id"), 10, 64)
	list, err := h.svc.List(c.Request.Context(), categoryID)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, list)
}
