package emergency

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recordvault/access-api/internal/handler"
	"github.com/recordvault/access-api/internal/middleware"
	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/service/emergency"
)

type Handler struct {
	service *emergency.Service
}

func NewHandler(service *emergency.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	tokens := r.Group("/emergency-tokens", middleware.RequireRole(model.RoleOwner))
	{
		tokens.POST("", h.Issue)
	}
}

type issueRequest struct {
	// TTLSeconds of zero means the configured default.
	TTLSeconds int64 `json:"ttl_seconds" binding:"omitempty,min=1"`
}

// Issue mints an emergency token scoped to the caller's own records. The raw
// token appears only in this response; it is never stored or logged.
func (h *Handler) Issue(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing identity"))
		return
	}

	// The body is optional; an empty one means default TTL.
	var req issueRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
			return
		}
	}

	token, err := h.service.Issue(c.Request.Context(), identity.ID, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(token))
}
