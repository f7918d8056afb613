package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hrms/internal/apperror"
)

const internalMessage = "internal server error"

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Kind  apperror.Kind `json:"kind"`
	Error string        `json:"error"`
}

func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	body := ErrorBody{Kind: kind, Error: err.Error()}

	if kind == apperror.KindInternal {
		h.logger.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		body.Error = internalMessage
	}
	c.AbortWithStatusJSON(statusFor(kind), body)
}
