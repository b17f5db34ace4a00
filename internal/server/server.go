package server

import (
	"ctchen222/item-registry/internal/api/controller"
	"ctchen222/item-registry/internal/api/middleware"
	"ctchen222/item-registry/internal/api/response"
	"ctchen222/item-registry/internal/api/service"
	"ctchen222/item-registry/internal/hub"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("server")

type Server struct {
	engine   *gin.Engine
	hub      *hub.Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewServer(
	h *hub.Hub,
	guard service.AuthGuard,
	users *controller.UserController,
	items *controller.ItemController,
	logger *slog.Logger,
) *Server {
	s := &Server{
		engine: gin.New(),
		hub:    h,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.registerHandlers(guard, users, items)
	return s
}

func (s *Server) registerHandlers(guard service.AuthGuard, users *controller.UserController, items *controller.ItemController) {
	s.engine.Use(gin.Recovery(), middleware.RequestLogger(s.logger))
	s.engine.NoRoute(func(c *gin.Context) {
		response.ErrorResponse(c, http.StatusNotFound, "Not found")
	})

	api := s.engine.Group("/api/v1")
	api.POST("/registration", users.Register)
	api.POST("/login", users.Login)
	api.GET("/users", users.ListUsernames)

	authed := api.Group("", middleware.RequireUser(guard))
	authed.GET("/items", items.List)
	authed.POST("/items/new", items.Create)
	authed.DELETE("/items/:id", items.Delete)
	authed.POST("/send", items.Send)
	authed.GET("/get", items.Receive)
	authed.GET("/events", s.handleWebSocket)
}

// Engine returns the HTTP handler serving every route.
func (s *Server) Engine() http.Handler {
	return s.engine
}

// handleWebSocket upgrades the connection and attaches it to the hub as a
// client of the authenticated user. It blocks until the client disconnects.
func (s *Server) handleWebSocket(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.ErrorResponse(c, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	ctx, span := tracer.Start(c.Request.Context(), "server.handleWebSocket", trace.WithAttributes(
		attribute.Int64("user.id", user.ID),
	))
	defer span.End()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to upgrade connection", "user.id", user.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to upgrade connection")
		return
	}

	s.logger.InfoContext(ctx, "Events client connected", "user.id", user.ID)
	if err := hub.NewClient(user.ID, conn).Serve(ctx, s.hub); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Hub unavailable")
	}
	s.logger.InfoContext(ctx, "Events client disconnected", "user.id", user.ID)
}
