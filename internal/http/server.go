package http

import (
	"context"
	"log"
	"net/http"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/auth"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/config"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/subject"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/http/handler"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/http/middleware"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/infra/cache"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/store"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/metrics"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/profiling"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

const (
	jsonKeyStatus    = "status"
	statusOK         = "ok"
	requestBodyLimit = "8M"
	folderWorkers    = 10
)

type ServerDependencies struct {
	Config         *config.Config
	API            handler.APIFactory
	Documents      store.Store
	Sync           handler.SyncRunner
	AuthMiddleware *auth.Middleware
	Metrics        *metrics.Metrics
	UsersCache     *cache.TTL[[]subject.ProjectUser]
	Logger         *log.Logger
}

type Server struct {
	echo   *echo.Echo
	deps   *ServerDependencies
	browse *handler.BrowseHandler
}

func NewServer(deps *ServerDependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.HTTPErrorHandler = CustomHTTPErrorHandler

	e.Server.ReadTimeout = deps.Config.Server.ReadTimeout
	e.Server.WriteTimeout = deps.Config.Server.WriteTimeout

	// Request ID middleware (first, so all logs have request ID)
	e.Use(middleware.RequestID())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.BodyLimit(requestBodyLimit))
	e.Use(deps.Metrics.Middleware())

	globalRateLimiter := middleware.NewGlobalRateLimiter(deps.Config.RateLimit.RequestsPerSecond, deps.Config.RateLimit.Burst)
	e.Use(globalRateLimiter.Middleware())

	syncRateLimiter := middleware.NewSyncRateLimiter()

	browseHandler := handler.NewBrowseHandler(deps.API, deps.UsersCache, folderWorkers, deps.Logger)
	documentHandler := handler.NewDocumentHandler(deps.Documents)
	syncHandler := handler.NewSyncHandler(deps.Sync, deps.API, deps.Metrics)

	e.GET("/health", healthCheck)
	deps.Metrics.RegisterRoutes(e)
	if deps.Config.Server.Profiling {
		profiling.RegisterPprofRoutes(e)
		profiling.RegisterMemoryRoutes(e)
	}

	api := e.Group("/api")
	api.Use(deps.AuthMiddleware.RequireOperator())

	api.GET("/hubs", browseHandler.ListHubs)
	api.GET("/hubs/:hubId/projects", browseHandler.ListProjects)
	api.GET("/hubs/:hubId/projects/:projectId/folders", browseHandler.FolderTree)
	api.GET("/projects/:projectId/users", browseHandler.ProjectUsers)
	api.GET("/projects/:projectId/folders/:folderId/permissions", browseHandler.FolderPermissions)

	api.POST("/save-folder-permissions", documentHandler.Save)
	api.GET("/load-folder-permissions/:hubId/:projectId", documentHandler.Load)
	api.GET("/check-folder-permissions/:hubId/:projectId", documentHandler.Check)

	// Rate limited after auth so the limiter keys on the operator.
	api.POST("/sync-folder-permissions/:hubId/:projectId", syncHandler.Sync, syncRateLimiter.Middleware())

	return &Server{
		echo:   e,
		deps:   deps,
		browse: browseHandler,
	}
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ClearCaches drops expired entries of the server's in-memory caches.
func (s *Server) ClearCaches() {
	s.browse.ClearCaches()
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		jsonKeyStatus: statusOK,
	})
}
