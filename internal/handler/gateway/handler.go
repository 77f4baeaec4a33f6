package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/recordvault/access-api/internal/handler"
	"github.com/recordvault/access-api/internal/middleware"
	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/service/gateway"
)

type Handler struct {
	service *gateway.Service
}

func NewHandler(service *gateway.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/authorize", h.Authorize)
}

type authorizeRequest struct {
	RecordID       string `json:"record_id" binding:"required,uuid"`
	AccessType     string `json:"access_type" binding:"required,accesstype"`
	Reason         string `json:"reason"`
	EmergencyToken string `json:"emergency_token"`
}

type authorizeResponse struct {
	Allowed      bool              `json:"allowed"`
	Level        model.AccessLevel `json:"level,omitempty"`
	AuditEntryID int64             `json:"audit_entry_id"`
	DecidedAt    time.Time         `json:"decided_at"`
}

// Authorize decides one access attempt. Denials are uniform: the response
// never says why, only the audit trail does.
func (h *Handler) Authorize(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing identity"))
		return
	}

	var req authorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	recordID, _ := uuid.Parse(req.RecordID)

	decision, err := h.service.Authorize(c.Request.Context(), gateway.Input{
		AccessorID:     identity.ID,
		RecordID:       recordID,
		AccessType:     model.AccessType(req.AccessType),
		Reason:         req.Reason,
		EmergencyToken: req.EmergencyToken,
		Origin:         handler.OriginFrom(c),
	})
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	resp := authorizeResponse{
		Allowed:      decision.Allowed,
		Level:        decision.Level,
		AuditEntryID: decision.AuditEntryID,
		DecidedAt:    decision.DecidedAt,
	}
	if !decision.Allowed {
		c.JSON(http.StatusForbidden, gin.H{
			"status":         "error",
			"message":        "access denied",
			"audit_entry_id": decision.AuditEntryID,
		})
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}
