package record

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recordvault/access-api/internal/handler"
	"github.com/recordvault/access-api/internal/middleware"
	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/service/record"
)

// Handler manages record metadata registration. Content never passes through;
// reads of content are authorized via the gateway and served elsewhere.
type Handler struct {
	service *record.Service
}

func NewHandler(service *record.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	records := r.Group("/records", middleware.RequireRole(model.RoleOwner))
	{
		records.POST("", h.Create)
		records.GET("", h.List)
	}
}

type createRequest struct {
	Category         string `json:"category" binding:"required,category"`
	Title            string `json:"title" binding:"required"`
	EmergencyVisible bool   `json:"emergency_visible"`
}

func (h *Handler) Create(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing identity"))
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.service.Create(c.Request.Context(), identity.ID, model.Category(req.Category), req.Title, req.EmergencyVisible)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) List(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing identity"))
		return
	}

	records, err := h.service.ListByOwner(c.Request.Context(), identity.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(records))
}
