package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fanradar/internal/service"
)

type FandomHandler struct {
	svc *service.FandomService
}

// FandomCreateReq JSON 或 multipart；图片可上传文件也可给 URL
type FandomCreateReq struct {
	Name          string `json:"name" form:"name"`
	Description   string `json:"description" form:"description"`
	SubcategoryID uint64 `json:"subcategory_id" form:"subcategory_id"`
	CoverImageURL string `json:"cover_image_url" form:"cover_image_url"`
	LogoImageURL  string `json:"logo_image_url" form:"logo_image_url"`
}

type FandomUpdateReq struct {
	Name          *string `json:"name" form:"name"`
	Description   *string `json:"description" form:"description"`
	SubcategoryID *uint64 `json:"subcategory_id" form:"subcategory_id"`
	IsActive      *bool   `json:"is_active" form:"is_active"`
	CoverImageURL string  `json:"cover_image_url" form:"cover_image_url"`
	LogoImageURL  string  `json:"logo_image_url" form:"logo_image_url"`
}

func NewFandomHandler(svc *service.FandomService) *FandomHandler {
	return &FandomHandler{svc: svc}
}

func (h *FandomHandler) Create(c *gin.Context) {
	var req FandomCreateReq
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c)
		return
	}

	files := &openFiles{}
	defer files.close()
	cover, err := files.image(c, "cover_image", req.CoverImageURL)
	if err != nil {
		badRequest(c)
		return
	}
	logo, err := files.image(c, "logo_image", req.LogoImageURL)
	if err != nil {
		badRequest(c)
		return
	}

	fandom, err := h.svc.Create(c.Request.Context(), currentUser(c), service.CreateFandomInput{
		Name:          req.Name,
		Description:   req.Description,
		SubcategoryID: req.SubcategoryID,
		Cover:         cover,
		Logo:          logo,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, fandom)
}

func (h *FandomHandler) Update(c *gin.Context) {
	fandomID, valid := paramID(c, "id")
	if !valid {
		return
	}
	var req FandomUpdateReq
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c)
		return
	}

	files := &openFiles{}
	defer files.close()
	cover, err := files.image(c, "cover_image", req.CoverImageURL)
	if err != nil {
		badRequest(c)
		return
	}
	logo, err := files.image(c, "logo_image", req.LogoImageURL)
	if err != nil {
		badRequest(c)
		return
	}

	fandom, err := h.svc.Update(c.Request.Context(), currentUser(c), fandomID, service.UpdateFandomInput{
		Name:          req.Name,
		Description:   req.Description,
		SubcategoryID: req.SubcategoryID,
		IsActive:      req.IsActive,
		Cover:         cover,
		Logo:          logo,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, fandom)
}

func (h *FandomHandler) Get(c *gin.Context) {
	fandomID, valid := paramID(c, "id")
	if !valid {
		return
	}
	fandom, err := h.svc.Get(c.Request.Context(), fandomID)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, fandom)
}

// List 只列出启用中的 fandom，可按 subcategory_id 过滤
func (h *FandomHandler) List(c *gin.Context) {
	page, size := pageQuery(c)
	subcategoryID, _ := strconv.ParseUint(c.Query("subcategory_id"), 10, 64)

	list, total, err := h.svc.List(c.Request.Context(), subcategoryID, page, size)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, pageData{List: list, Total: total, Page: page, Size: size})
}

// openFiles 记录本次请求打开的上传文件，处理完统一关闭
type openFiles struct {
	files []multipart.File
}

func (o *openFiles) open(fh *multipart.FileHeader) (multipart.File, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	o.files = append(o.files, f)
	return f, nil
}

// image 文件字段优先，没有文件时用 URL，都没有返回 nil
func (o *openFiles) image(c *gin.Context, field, url string) (*service.ImageInput, error) {
	fh, err := c.FormFile(field)
	if err != nil && !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}
	if fh != nil {
		f, err := o.open(fh)
		if err != nil {
			return nil, err
		}
		return &service.ImageInput{File: f, Filename: fh.Filename}, nil
	}
	if url != "" {
		return &service.ImageInput{URL: url}, nil
	}
	return nil, nil
}

func (o *openFiles) media(c *gin.Context, field string) ([]service.FileInput, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	var out []service.FileInput
	for _, fh := range form.File[field] {
		f, err := o.open(fh)
		if err != nil {
			return nil, err
		}
		out = append(out, service.FileInput{Reader: f, Filename: fh.Filename})
	}
	return out, nil
}

func (o *openFiles) close() {
	for _, f := range o.files {
		_ = f.Close()
	}
}
