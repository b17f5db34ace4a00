package controller

import (
	"ctchen222/item-registry/internal/api/middleware"
	"ctchen222/item-registry/internal/api/models"
	"ctchen222/item-registry/internal/api/response"
	"ctchen222/item-registry/internal/api/service"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ItemController handles item management and ownership transfers. Every
// route sits behind middleware.RequireUser.
type ItemController struct {
	itemService service.ItemService
	logger      *slog.Logger
}

func NewItemController(itemService service.ItemService, logger *slog.Logger) *ItemController {
	return &ItemController{
		itemService: itemService,
		logger:      logger,
	}
}

func (ic *ItemController) currentUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.ErrorResponse(c, http.StatusUnauthorized, "Could not validate credentials")
	}
	return user, ok
}

// List returns the caller's items.
func (ic *ItemController) List(c *gin.Context) {
	user, ok := ic.currentUser(c)
	if !ok {
		return
	}

	items, err := ic.itemService.ListFor(c.Request.Context(), user)
	if err != nil {
		writeError(c, ic.logger, err)
		return
	}
	response.SuccessResponseList(c, items)
}

// Create adds a new item owned by the caller.
func (ic *ItemController) Create(c *gin.Context) {
	user, ok := ic.currentUser(c)
	if !ok {
		return
	}

	var req models.CreateItemRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "Item title is required")
		return
	}

	item, err := ic.itemService.Create(c.Request.Context(), user, req.Title)
	if err != nil {
		writeError(c, ic.logger, err)
		return
	}
	response.CreatedResponse(c, item)
}

// Delete removes an item by id.
func (ic *ItemController) Delete(c *gin.Context) {
	user, ok := ic.currentUser(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorResponse(c, http.StatusNotFound, "Item not found")
		return
	}

	if err := ic.itemService.Delete(c.Request.Context(), user, id); err != nil {
		writeError(c, ic.logger, err)
		return
	}
	response.SuccessResponse(c, models.MessageResponse{Message: "Item deleted"})
}

// Send mints a transfer link for one of the caller's items.
func (ic *ItemController) Send(c *gin.Context) {
	user, ok := ic.currentUser(c)
	if !ok {
		return
	}

	var req models.SendItemRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, "Both item_id and achiever required")
		return
	}

	link, err := ic.itemService.Send(c.Request.Context(), user, req.ItemID, req.Achiever)
	if err != nil {
		writeError(c, ic.logger, err)
		return
	}
	response.SuccessResponse(c, models.SendItemResponse{Link: link})
}

// Receive redeems the transfer_key query parameter for the caller.
func (ic *ItemController) Receive(c *gin.Context) {
	user, ok := ic.currentUser(c)
	if !ok {
		return
	}

	key := c.Query(service.TransferKeyParam)
	if key == "" {
		response.ErrorResponse(c, http.StatusNotFound, "Item not found")
		return
	}

	msg, err := ic.itemService.Receive(c.Request.Context(), user, key)
	if err != nil {
		writeError(c, ic.logger, err)
		return
	}
	response.SuccessResponse(c, models.MessageResponse{Message: msg})
}
