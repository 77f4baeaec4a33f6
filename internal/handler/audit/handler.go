package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/recordvault/access-api/internal/handler"
	"github.com/recordvault/access-api/internal/middleware"
	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/service/audit"
	"github.com/recordvault/access-api/pkg/errors"
)

// exportPageSize is the keyset page size used when streaming exports.
const exportPageSize = 1000

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	logs := r.Group("/audit")
	{
		logs.GET("/logs", h.Query)
		logs.GET("/export", h.Export)
		logs.GET("/stats", h.Stats)
	}
}

type queryParams struct {
	OwnerID    string `form:"owner_id" binding:"omitempty,uuid"`
	AccessorID string `form:"accessor_id" binding:"omitempty,uuid"`
	RecordID   string `form:"record_id" binding:"omitempty,uuid"`
	From       string `form:"from"`
	To         string `form:"to"`
	DeniedOnly bool   `form:"denied_only"`
	AfterID    int64  `form:"after_id" binding:"omitempty,min=0"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

func (h *Handler) Query(c *gin.Context) {
	filter, err := h.scopedFilter(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	entries, err := h.service.Query(c.Request.Context(), filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	cursor := int64(0)
	if len(entries) > 0 {
		cursor = entries[len(entries)-1].ID
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"entries":  entries,
		"after_id": cursor,
	}))
}

// Export streams the filtered trail as CSV or JSON lines, paging with the
// keyset cursor so arbitrarily large trails export in bounded memory.
func (h *Handler) Export(c *gin.Context) {
	filter, err := h.scopedFilter(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	filter.Limit = exportPageSize

	format := c.DefaultQuery("format", "csv")
	switch format {
	case "csv":
		h.exportCSV(c, filter)
	case "json":
		h.exportJSON(c, filter)
	default:
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("format must be csv or json"))
	}
}

func (h *Handler) exportCSV(c *gin.Context, filter *model.AuditFilter) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=audit-%s.csv", time.Now().UTC().Format("20060102-150405")))

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"id", "created_at", "owner_id", "accessor_id", "record_id", "access_type", "denied", "deny_reason", "reason", "ip_address"})

	h.forEachPage(c, filter, func(entry *model.AuditEntry) {
		recordID := ""
		if entry.RecordID != nil {
			recordID = entry.RecordID.String()
		}
		_ = w.Write([]string{
			strconv.FormatInt(entry.ID, 10),
			entry.CreatedAt.UTC().Format(time.RFC3339),
			entry.OwnerID.String(),
			entry.AccessorID.String(),
			recordID,
			string(entry.AccessType),
			strconv.FormatBool(entry.Denied),
			string(entry.DenyReason),
			entry.Reason,
			entry.IPAddress,
		})
	})
	w.Flush()
}

func (h *Handler) exportJSON(c *gin.Context, filter *model.AuditFilter) {
	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=audit-%s.jsonl", time.Now().UTC().Format("20060102-150405")))

	enc := json.NewEncoder(c.Writer)
	h.forEachPage(c, filter, func(entry *model.AuditEntry) {
		_ = enc.Encode(entry)
	})
}

// forEachPage walks the trail with the keyset cursor. A store fault mid-export
// truncates the stream; the caller restarts from the last id it received.
func (h *Handler) forEachPage(c *gin.Context, filter *model.AuditFilter, fn func(*model.AuditEntry)) {
	for {
		entries, err := h.service.Query(c.Request.Context(), filter)
		if err != nil || len(entries) == 0 {
			return
		}
		for _, entry := range entries {
			fn(entry)
		}
		filter.AfterID = entries[len(entries)-1].ID
		if len(entries) < filter.Limit {
			return
		}
	}
}

func (h *Handler) Stats(c *gin.Context) {
	filter, err := h.scopedFilter(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	stats, err := h.service.AggregateStats(c.Request.Context(), filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}

// scopedFilter parses the query parameters and pins the filter to what the
// caller is allowed to see: owners their own trail, accessors their own
// actions, administrators everything.
func (h *Handler) scopedFilter(c *gin.Context) (*model.AuditFilter, error) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return nil, errors.Forbidden("missing identity")
	}

	var params queryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, errors.BadRequest(err.Error(), err)
	}

	filter := &model.AuditFilter{
		DeniedOnly: params.DeniedOnly,
		AfterID:    params.AfterID,
		Limit:      params.Limit,
	}
	if params.OwnerID != "" {
		id, _ := uuid.Parse(params.OwnerID)
		filter.OwnerID = &id
	}
	if params.AccessorID != "" {
		id, _ := uuid.Parse(params.AccessorID)
		filter.AccessorID = &id
	}
	if params.RecordID != "" {
		id, _ := uuid.Parse(params.RecordID)
		filter.RecordID = &id
	}
	if params.From != "" {
		t, err := time.Parse(time.RFC3339, params.From)
		if err != nil {
			return nil, errors.BadRequest("from must be RFC3339", err)
		}
		filter.From = &t
	}
	if params.To != "" {
		t, err := time.Parse(time.RFC3339, params.To)
		if err != nil {
			return nil, errors.BadRequest("to must be RFC3339", err)
		}
		filter.To = &t
	}

	switch identity.Role {
	case model.RoleAdministrator:
		// Unrestricted.
	case model.RoleOwner:
		if filter.OwnerID != nil && *filter.OwnerID != identity.ID {
			return nil, errors.Forbidden("owners may only query their own trail")
		}
		filter.OwnerID = &identity.ID
	default:
		if filter.AccessorID != nil && *filter.AccessorID != identity.ID {
			return nil, errors.Forbidden("accessors may only query their own actions")
		}
		filter.AccessorID = &identity.ID
	}
	return filter, nil
}
