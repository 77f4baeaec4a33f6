package grant

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/recordvault/access-api/internal/handler"
	"github.com/recordvault/access-api/internal/middleware"
	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/service/audit"
	"github.com/recordvault/access-api/internal/service/event"
	"github.com/recordvault/access-api/internal/service/permission"
	"github.com/recordvault/access-api/internal/service/record"
	"github.com/recordvault/access-api/pkg/errors"
)

// Handler exposes the owner-facing grant operations. Grants and revocations
// here bypass the request workflow; both are still written to the audit log.
type Handler struct {
	permissions *permission.Service
	records     *record.Service
	auditor     *audit.Service
	events      *event.Service
}

func NewHandler(permissions *permission.Service, records *record.Service, auditor *audit.Service, events *event.Service) *Handler {
	return &Handler{
		permissions: permissions,
		records:     records,
		auditor:     auditor,
		events:      events,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	grants := r.Group("/grants", middleware.RequireRole(model.RoleOwner))
	{
		grants.POST("", h.Grant)
		grants.POST("/revoke", h.Revoke)
	}

	records := r.Group("/records", middleware.RequireRole(model.RoleOwner))
	{
		records.GET("/:id/grants", h.ListGrants)
		records.GET("/:id/grantees", h.ListGrantees)
	}
}

type grantRequest struct {
	RecordID   string `json:"record_id" binding:"required,uuid"`
	GranteeID  string `json:"grantee_id" binding:"required,uuid"`
	Level      string `json:"level" binding:"required,oneof=read write"`
	TTLSeconds int64  `json:"ttl_seconds" binding:"omitempty,min=1"`
	Reason     string `json:"reason"`
}

func (h *Handler) Grant(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing identity"))
		return
	}

	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	recordID, _ := uuid.Parse(req.RecordID)
	granteeID, _ := uuid.Parse(req.GranteeID)

	rec, err := h.records.Get(c.Request.Context(), recordID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	if rec.OwnerID != identity.ID {
		handler.RespondError(c, errors.Forbidden("only the record owner may grant access"))
		return
	}
	if granteeID == identity.ID {
		handler.RespondError(c, errors.BadRequest("cannot grant access to yourself", nil))
		return
	}

	var ttl *time.Duration
	if req.TTLSeconds > 0 {
		d := time.Duration(req.TTLSeconds) * time.Second
		ttl = &d
	}

	grant, err := h.permissions.Grant(c.Request.Context(), recordID, identity.ID, granteeID, model.AccessLevel(req.Level), ttl)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	_, err = h.auditor.Append(c.Request.Context(), identity.ID, granteeID, model.AccessTypeGrant, &audit.EntryOptions{
		RecordID: &recordID,
		Reason:   req.Reason,
		Origin:   handler.OriginFrom(c),
		Metadata: map[string]interface{}{
			"grant_id": grant.ID,
			"level":    grant.Level,
		},
	})
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	h.events.AccessGranted(c.Request.Context(), identity.ID, granteeID, recordID)
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(grant))
}

type revokeRequest struct {
	GranteeID string `json:"grantee_id" binding:"required,uuid"`
	Reason    string `json:"reason"`
}

// Revoke strips the grantee from every record the caller owns. The operation
// is idempotent: re-running it after a partial failure converges.
func (h *Handler) Revoke(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing identity"))
		return
	}

	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	granteeID, _ := uuid.Parse(req.GranteeID)

	result, err := h.permissions.Revoke(c.Request.Context(), identity.ID, granteeID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	_, err = h.auditor.Append(c.Request.Context(), identity.ID, granteeID, model.AccessTypeRevoke, &audit.EntryOptions{
		Reason: req.Reason,
		Origin: handler.OriginFrom(c),
		Metadata: map[string]interface{}{
			"records_affected": result.Affected,
		},
	})
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	h.events.AccessRevoked(c.Request.Context(), identity.ID, granteeID, result.Affected)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) ListGrants(c *gin.Context) {
	rec, ok := h.ownedRecord(c)
	if !ok {
		return
	}

	grants, err := h.permissions.ListGrants(c.Request.Context(), rec.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(grants))
}

func (h *Handler) ListGrantees(c *gin.Context) {
	rec, ok := h.ownedRecord(c)
	if !ok {
		return
	}

	grantees, err := h.permissions.ListActiveGrantees(c.Request.Context(), rec.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(grantees))
}

// ownedRecord resolves the :id path param and enforces that the caller owns
// the record; on failure it has already written the response.
func (h *Handler) ownedRecord(c *gin.Context) (*model.Record, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing identity"))
		return nil, false
	}

	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid record id"))
		return nil, false
	}

	rec, err := h.records.Get(c.Request.Context(), recordID)
	if err != nil {
		handler.RespondError(c, err)
		return nil, false
	}
	if rec.OwnerID != identity.ID {
		handler.RespondError(c, errors.Forbidden("only the record owner may inspect grants"))
		return nil, false
	}
	return rec, true
}
