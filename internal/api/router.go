package api

import (
	"github.com/gin-gonic/gin"
	"github.com/macthinh22/my-knowledge-app/internal/api/handler"
	"github.com/macthinh22/my-knowledge-app/internal/api/middleware"
	"github.com/macthinh22/my-knowledge-app/internal/logger"
	"github.com/macthinh22/my-knowledge-app/internal/service"
	"gorm.io/gorm"
)

// RouterConfig collects what the router needs to build its handlers.
type RouterConfig struct {
	Mode   string
	CORS   middleware.CORSConfig
	Logger *logger.Logger
	DB     *gorm.DB

	Intake *service.IntakeService
	Videos *service.VideoService
	Search *service.SearchService
	Tags   *service.TagService
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(cfg *RouterConfig) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler(cfg.DB)
	videoHandler := handler.NewVideoHandler(cfg.Intake, cfg.Videos, cfg.Search)
	tagHandler := handler.NewTagHandler(cfg.Tags)

	// Health check
	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")
	{
		api.GET("/health", healthHandler.Health)

		// Videos and pipeline jobs
		videos := api.Group("/videos")
		videos.POST("", videoHandler.Submit)
		videos.GET("", videoHandler.List)
		videos.GET("/search", videoHandler.Search)
		videos.GET("/jobs", videoHandler.ListJobs)
		videos.GET("/jobs/:id", videoHandler.GetJob)
		videos.GET("/:id", videoHandler.Get)
		videos.PATCH("/:id", videoHandler.Update)
		videos.DELETE("/:id", videoHandler.Delete)

		// Tag registry
		tags := api.Group("/tags")
		tags.GET("", tagHandler.List)
		tags.GET("/aliases", tagHandler.ListAliases)
		tags.POST("/aliases", tagHandler.CreateAlias)
		tags.DELETE("/aliases/:alias", tagHandler.DeleteAlias)
		tags.POST("/rename", tagHandler.Rename)
		tags.POST("/merge", tagHandler.Merge)
		tags.DELETE("/:tag", tagHandler.Delete)
	}

	return r
}
