package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/recordvault/access-api/internal/model"
)

// OriginFrom captures caller network metadata for the audit trail.
func OriginFrom(c *gin.Context) model.Origin {
	return model.Origin{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}
