// internal/interfaces/http/response/response.go
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
)

// RequestIDKey is the gin context key holding the request id
const RequestIDKey = "request_id"

// Success writes {"message": ..., "data": ...} with status 200
func Success(c *gin.Context, message string, data any) {
	SuccessStatus(c, http.StatusOK, message, data)
}

// SuccessStatus writes a success envelope with an explicit status
func SuccessStatus(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{
		"message": message,
		"data":    data,
	})
}

// Error maps err through its code metadata, logs it and aborts the request.
// Messages of client-facing codes are shown as is; everything else gets the
// code's public message.
func Error(c *gin.Context, logger logrus.FieldLogger, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeUnauthorized,
		pkgerrors.CodeForbidden,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeConflict,
		pkgerrors.CodePaymentDeclined,
		pkgerrors.CodeRateLimit:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	body := gin.H{
		"error": msg,
		"code":  string(typed.Code()),
	}
	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			body["details"] = details
		}
	}

	if logger != nil {
		entry := logger.WithError(err).WithFields(logrus.Fields{
			"error_code": typed.Code(),
			"path":       c.FullPath(),
			"request_id": c.GetString(RequestIDKey),
		})
		switch {
		case meta.HTTPStatus >= http.StatusInternalServerError, meta.Escalate:
			entry.Error("Request failed")
		default:
			entry.Debug("Request rejected")
		}
	}

	c.AbortWithStatusJSON(meta.HTTPStatus, body)
}
