package handler

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recordvault/access-api/pkg/errors"
)

// PartialFailureResponse surfaces a bulk operation that only partly converged
// so the caller can retry; re-running the operation is safe.
type PartialFailureResponse struct {
	Status   string                 `json:"status"`
	Message  string                 `json:"message"`
	Affected int                    `json:"affected"`
	Failures []errors.RecordFailure `json:"failures"`
}

// RespondError serializes an application error at the transport boundary.
func RespondError(c *gin.Context, err error) {
	var partial *errors.PartialFailureError
	if stderrors.As(err, &partial) {
		c.JSON(partial.StatusCode(), PartialFailureResponse{
			Status:   "partial",
			Message:  partial.Message,
			Affected: partial.Affected,
			Failures: partial.Failures,
		})
		return
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		c.JSON(appErr.StatusCode(), NewErrorResponse(appErr.Message))
		return
	}

	c.JSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
}
