package request

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/recordvault/access-api/internal/handler"
	"github.com/recordvault/access-api/internal/middleware"
	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/service/request"
	"github.com/recordvault/access-api/pkg/errors"
)

type Handler struct {
	service *request.Service
}

func NewHandler(service *request.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	requests := r.Group("/requests")
	{
		requests.POST("", middleware.RequireRole(model.RoleProfessional), h.Create)
		requests.GET("/outgoing", h.ListOutgoing)
		requests.GET("/incoming", middleware.RequireRole(model.RoleOwner), h.ListIncoming)
		requests.GET("/:id", h.Get)
		requests.PUT("/:id", h.Edit)
		requests.DELETE("/:id", h.Withdraw)
		requests.POST("/:id/respond", middleware.RequireRole(model.RoleOwner), h.Respond)
	}
}

type createRequest struct {
	OwnerID    string           `json:"owner_id" binding:"required,uuid"`
	Reason     string           `json:"reason" binding:"required"`
	Level      string           `json:"level" binding:"required,oneof=read write"`
	Categories []model.Category `json:"categories" binding:"required,min=1,dive,reqcategory"`
	Urgency    string           `json:"urgency" binding:"required,oneof=routine urgent emergency"`
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
	ownerID, _ := uuid.Parse(req.OwnerID)

	created, err := h.service.Create(c.Request.Context(), request.CreateInput{
		RequesterID: identity.ID,
		OwnerID:     ownerID,
		Reason:      req.Reason,
		Level:       model.AccessLevel(req.Level),
		Categories:  req.Categories,
		Urgency:     model.Urgency(req.Urgency),
	})
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) Get(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing identity"))
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request id"))
		return
	}

	req, err := h.service.Get(c.Request.Context(), requestID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	// Only the two parties to the request may see it.
	if identity.ID != req.RequesterID && identity.ID != req.OwnerID && identity.Role != model.RoleAdministrator {
		handler.RespondError(c, errors.Forbidden("not a party to this request"))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(req))
}

type editRequest struct {
	Reason     string           `json:"reason" binding:"required"`
	Level      string           `json:"level" binding:"required,oneof=read write"`
	Categories []model.Category `json:"categories" binding:"required,min=1,dive,reqcategory"`
	Urgency    string           `json:"urgency" binding:"required,oneof=routine urgent emergency"`
}

func (h *Handler) Edit(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing identity"))
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request id"))
		return
	}

	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	updated, err := h.service.Edit(c.Request.Context(), requestID, identity.ID, request.EditInput{
		Reason:     req.Reason,
		Level:      model.AccessLevel(req.Level),
		Categories: req.Categories,
		Urgency:    model.Urgency(req.Urgency),
	})
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

func (h *Handler) Withdraw(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing identity"))
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request id"))
		return
	}

	if err := h.service.Withdraw(c.Request.Context(), requestID, identity.ID); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

type respondRequest struct {
	Decision  string     `json:"decision" binding:"required,oneof=approve deny"`
	ExpiresAt *time.Time `json:"expires_at"`
	Message   string     `json:"message"`
}

func (h *Handler) Respond(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing identity"))
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request id"))
		return
	}

	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	result, err := h.service.Respond(c.Request.Context(), requestID, identity.ID, request.RespondInput{
		Decision:  model.Decision(req.Decision),
		ExpiresAt: req.ExpiresAt,
		Message:   req.Message,
		Origin:    handler.OriginFrom(c),
	})
	if err != nil {
		// A partial fan-out still responded to the request; surface both.
		var partial *errors.PartialFailureError
		if stderrors.As(err, &partial) && result != nil {
			c.JSON(partial.StatusCode(), gin.H{
				"status":   "partial",
				"message":  partial.Message,
				"request":  result.Request,
				"outcomes": result.Outcomes,
			})
			return
		}
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) ListOutgoing(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing identity"))
		return
	}

	requests, err := h.service.ListByRequester(c.Request.Context(), identity.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(requests))
}

func (h *Handler) ListIncoming(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing identity"))
		return
	}

	requests, err := h.service.ListByOwner(c.Request.Context(), identity.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(requests))
}
