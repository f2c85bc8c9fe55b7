package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fanradar/internal/middleware"
	"fanradar/internal/pkg"
	"fanradar/internal/service"
)

// Response 统一返回体
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type pageData struct {
	List  any   `json:"list"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

func okMsg(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Response{Success: true, Message: msg})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Message: msg})
}

func badRequest(c *gin.Context) {
	fail(c, http.StatusBadRequest, "invalid params")
}

// writeError 业务错误映射为 HTTP 状态码，未识别的错误记日志后返回 500
func writeError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		pkg.Logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		fail(c, status, "internal error")
		return
	}
	fail(c, status, err.Error())
}

func statusOf(err error) int {
	var (
		nf *service.NotFoundError
		fe *service.ForbiddenError
		ve *service.ValidationError
	)
	switch {
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.As(err, &fe), errors.Is(err, service.ErrSelfAction):
		return http.StatusForbidden
	case errors.As(err, &nf), errors.Is(err, service.ErrNotMember):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyMember), errors.Is(err, service.ErrLastAdmin):
		return http.StatusConflict
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func currentUser(c *gin.Context) uint64 {
	return c.GetUint64(middleware.ContextUserIDKey)
}

func paramID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c)
		return 0, false
	}
	return id, true
}

func pageQuery(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("size"))
	offset, limit := service.Page(page, size)
	return offset/limit + 1, limit
}
