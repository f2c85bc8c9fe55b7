package router

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"fanradar/internal/handler"
	"fanradar/internal/middleware"
)

// Deps 路由依赖的 handler 与中间件
type Deps struct {
	User        *handler.UserHandler
	Fandom      *handler.FandomHandler
	Member      *handler.MemberHandler
	Post        *handler.PostHandler
	Subcategory *handler.SubcategoryHandler

	Verifier       middleware.TokenVerifier
	Limiter        *middleware.RateLimiter
	AllowedOrigins []string
	// UploadDir 非空时在 UploadURLPrefix 下提供上传文件的静态访问
	UploadDir       string
	UploadURLPrefix string
}

func InitRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), middleware.Recovery())
	r.Use(cors.New(corsConfig(d.AllowedOrigins)))

	if d.UploadDir != "" && d.UploadURLPrefix != "" {
		r.Static(d.UploadURLPrefix, d.UploadDir)
	}

	auth := middleware.AuthMiddleware(d.Verifier)
	limit := d.Limiter.Middleware()

	// 用户相关接口
	userGroup := r.Group("/api/user")
	{
		userGroup.POST("/register", limit, d.User.Register)
		userGroup.POST("/login", limit, d.User.Login)
		userGroup.POST("/logout", auth, d.User.Logout)
		userGroup.GET("/me", auth, d.User.Me)
	}

	// token 相关接口
	tokenGroup := r.Group("/api/token")
	{
		tokenGroup.POST("/refresh", limit, d.User.TokenRefresh)
	}

	// 分类
	catGroup := r.Group("/api")
	{
		catGroup.GET("/subcategories", d.Subcategory.List)
		catGroup.POST("/subcategories", auth, limit, d.Subcategory.Create)
		catGroup.POST("/categories", auth, limit, d.Subcategory.CreateCategory)
	}

	// fandom 与成员
	fandomGroup := r.Group("/api/fandoms")
	{
		fandomGroup.GET("", d.Fandom.List)
		fandomGroup.GET("/:id", d.Fandom.Get)
		fandomGroup.GET("/:id/members", d.Member.List)

		fandomGroup.POST("", auth, limit, d.Fandom.Create)
		fandomGroup.PATCH("/:id", auth, limit, d.Fandom.Update)
		fandomGroup.GET("/:id/members/me", auth, d.Member.Me)
		fandomGroup.POST("/:id/join", auth, limit, d.Member.Join)
		fandomGroup.POST("/:id/leave", auth, limit, d.Member.Leave)
		fandomGroup.DELETE("/:id/members/:userId", auth, limit, d.Member.Remove)
		fandomGroup.PATCH("/:id/members/:userId", auth, limit, d.Member.ChangeRole)

		fandomGroup.POST("/:id/posts", auth, limit, d.Post.Create)
		fandomGroup.GET("/:id/posts", auth, d.Post.ListByFandom)
		fandomGroup.GET("/:id/posts/:postId", auth, d.Post.GetInFandom)
	}

	// 帖子
	postGroup := r.Group("/api/posts")
	postGroup.Use(auth)
	{
		postGroup.GET("/:id", d.Post.Get)
		postGroup.PATCH("/:id", limit, d.Post.Update)
		postGroup.DELETE("/:id", limit, d.Post.DeletePost)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && strings.TrimSpace(origins[0]) == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
