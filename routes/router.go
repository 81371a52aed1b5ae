package routes

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cppla/newsboard/apperr"
	"github.com/cppla/newsboard/config"
	"github.com/cppla/newsboard/controllers"
	"github.com/cppla/newsboard/middleware"
	"github.com/cppla/newsboard/services"
	"github.com/cppla/newsboard/utils"
)

// Deps carries everything the router needs to build handlers.
type Deps struct {
	Config config.AppConfig
	Posts  *services.PostService
	Auth   *services.AuthService
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(deps Deps) *gin.Engine {
	cfg := deps.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	// Access log goes to its own rolling file; fall back to the app logger.
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		utils.Logger.Warn("gin access log unavailable, using app logger")
		gl = utils.Logger
	}
	r.Use(utils.Ginzap(gl, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(gl, cfg.IsDevelopment()))
	r.Use(middleware.ErrorHandler(cfg.IsDevelopment()))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	postController := controllers.NewPostController(deps.Posts)
	authController := controllers.NewAuthController(deps.Auth)

	api := r.Group("/api")

	posts := api.Group("/newsposts")
	posts.GET("", middleware.OptionalAuth(deps.Auth), postController.ListPosts)
	posts.GET("/categories", postController.Categories)
	posts.GET("/:id", middleware.OptionalAuth(deps.Auth), postController.GetPost)
	posts.POST("", middleware.AuthRequired(deps.Auth), postController.CreatePost)
	posts.PUT("/:id", middleware.AuthRequired(deps.Auth), postController.UpdatePost)
	posts.DELETE("/:id", middleware.AuthRequired(deps.Auth), postController.DeletePost)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(deps.Auth), authController.Logout)
	authGroup.GET("/user", middleware.AuthRequired(deps.Auth), authController.Me)
	authGroup.PUT("/user", middleware.AuthRequired(deps.Auth), authController.UpdateMe)
	authGroup.DELETE("/user", middleware.AuthRequired(deps.Auth), authController.DeleteMe)

	staticDir := cfg.StaticDir
	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || path == "/api" {
			utils.Fail(ctx, apperr.NotFound(40400, "API route not found"))
			return
		}
		if staticDir == "" || ctx.Request.Method != http.MethodGet {
			utils.Fail(ctx, apperr.NotFound(40400, "Not found"))
			return
		}
		// Existing assets are served as-is, anything else falls back to the SPA entry.
		if file := staticFile(staticDir, path); file != "" {
			ctx.File(file)
			return
		}
		index := filepath.Join(staticDir, "index.html")
		if _, err := os.Stat(index); err != nil {
			utils.Fail(ctx, apperr.NotFound(40400, "Not found"))
			return
		}
		ctx.File(index)
	})

	return r
}

// staticFile resolves path inside dir, refusing anything that escapes it.
func staticFile(dir, path string) string {
	clean := filepath.Clean("/" + path)
	if clean == "/" {
		return ""
	}
	full := filepath.Join(dir, filepath.FromSlash(clean))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return ""
	}
	return full
}
