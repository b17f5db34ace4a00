package controller

import (
	"ctchen222/item-registry/internal/api/models"
	"ctchen222/item-registry/internal/api/response"
	"ctchen222/item-registry/internal/api/service"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserController handles user-related HTTP requests.
type UserController struct {
	userService service.UserService
	logger      *slog.Logger
}

// NewUserController creates a new UserController.
func NewUserController(userService service.UserService, logger *slog.Logger) *UserController {
	return &UserController{
		userService: userService,
		logger:      logger,
	}
}

// Register handles the user registration endpoint. The body may be JSON or
// a form.
func (uc *UserController) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "Malformed request body")
		return
	}

	user, err := uc.userService.Register(c.Request.Context(), &req)
	if err != nil {
		writeError(c, uc.logger, err)
		return
	}

	response.CreatedResponse(c, gin.H{
		"message": "User created successfully",
		"user":    user,
	})
}

// Login handles the user login endpoint. Every credential failure is
// answered with the same 401.
func (uc *UserController) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.Header("WWW-Authenticate", "Bearer")
		response.ErrorResponse(c, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	token, err := uc.userService.Login(c.Request.Context(), &req)
	if errors.Is(err, service.ErrStoreUnavailable) {
		writeError(c, uc.logger, err)
		return
	}
	if err != nil {
		uc.logger.InfoContext(c.Request.Context(), "Login rejected", "username", req.Username, "reason", err.Error())
		c.Header("WWW-Authenticate", "Bearer")
		response.ErrorResponse(c, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	response.SuccessResponse(c, models.LoginResponse{AccessToken: token, TokenType: "bearer"})
}

// ListUsernames returns every registered username.
func (uc *UserController) ListUsernames(c *gin.Context) {
	names, err := uc.userService.ListUsernames(c.Request.Context())
	if err != nil {
		writeError(c, uc.logger, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	response.SuccessResponse(c, models.UsernamesResponse{Usernames: names})
}
