package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/reusehub/swapit-backend/internal/handler"
	appmw "github.com/reusehub/swapit-backend/internal/middleware"
	"github.com/reusehub/swapit-backend/internal/realtime"
	"github.com/reusehub/swapit-backend/internal/repository"
	"github.com/reusehub/swapit-backend/internal/service"
	"github.com/reusehub/swapit-backend/internal/storage"
	"gorm.io/gorm"
)

type Server struct {
	e        *echo.Echo
	itemRepo repository.ItemRepository
	msgRepo  repository.MessageRepository
	uploadH  *handler.UploadHandler
	hub      *realtime.Hub
	sha      string
	build    string
}

func New(db *gorm.DB, hub *realtime.Hub, sha, buildTime string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) (bool, error) {
			low := strings.ToLower(origin)
			if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
				strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
				return true, nil
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false, nil
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return false, nil
			}
			host := u.Hostname()
			if strings.HasSuffix(host, "vercel.app") {
				return true, nil
			}
			return false, nil
		},
	}))

	itemRepo := repository.NewItemRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	itemSvc := service.NewItemService(itemRepo, msgRepo)
	itemHandler := handler.NewItemHandler(itemSvc)

	msgSvc := service.NewMessageService(msgRepo, itemRepo, hub)
	msgHandler := handler.NewMessageHandler(msgSvc)

	feedHandler := handler.NewFeedHandler(hub)
	uploadHandler := handler.NewUploadHandler(nil)

	var guards []echo.MiddlewareFunc
	authMw, err := appmw.NewAuthMiddleware(context.Background())
	if err != nil {
		e.Logger.Warnf("firebase auth disabled: %v", err)
	} else {
		guards = append(guards, authMw.RequireAuth)
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    sha,
			"build_time": buildTime,
		})
	})

	api := e.Group("/api")
	api.GET("/items", itemHandler.List)
	api.GET("/items/:id", itemHandler.Get)
	api.POST("/items", itemHandler.Create, guards...)
	api.DELETE("/items/:id", itemHandler.Delete, guards...)
	api.POST("/uploads", uploadHandler.Upload, guards...)
	api.GET("/items/:id/messages", msgHandler.History, guards...)
	api.GET("/items/:id/counterparts", msgHandler.Counterparts, guards...)
	api.POST("/items/:id/messages", msgHandler.Send, guards...)
	api.GET("/items/:id/feed", feedHandler.Subscribe, guards...)

	return &Server{e: e, itemRepo: itemRepo, msgRepo: msgRepo, uploadH: uploadHandler, hub: hub, sha: sha, build: buildTime}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) SetDB(db *gorm.DB) {
	if s.itemRepo != nil {
		s.itemRepo.SetDB(db)
	}
	if s.msgRepo != nil {
		s.msgRepo.SetDB(db)
	}
}

func (s *Server) SetUploader(u *storage.Uploader) {
	s.uploadH.SetUploader(u)
}
