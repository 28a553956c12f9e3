package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/reconciler/internal/app/service/purchase"
	"github.com/fatflowers/reconciler/internal/app/service/receipt"
	"github.com/fatflowers/reconciler/internal/app/service/tokenauth"
	"github.com/fatflowers/reconciler/pkg/logctx"
	"github.com/fatflowers/reconciler/pkg/response"
)

// statusOf maps service errors to an HTTP status and envelope code.
func statusOf(err error) (int, response.APIResponseCode) {
	switch {
	case errors.Is(err, purchase.ErrPurchaseNotFound):
		return http.StatusNotFound, response.APIResponseCodeNotFound
	case errors.Is(err, tokenauth.ErrTokenBelongsToOtherUser):
		return http.StatusForbidden, response.APIResponseCodeForbidden
	case errors.Is(err, purchase.ErrAlreadyPurchased),
		errors.Is(err, purchase.ErrInvalidCancelTarget),
		errors.Is(err, purchase.ErrInvalidCompleteTarget),
		errors.Is(err, purchase.ErrConcurrentUpdate):
		return http.StatusConflict, response.APIResponseCodeConflict
	case errors.Is(err, receipt.ErrUnexpectedStore):
		return http.StatusBadGateway, response.APIResponseCodeStoreUnavailable
	case errors.Is(err, receipt.ErrUnknownProduct),
		errors.Is(err, receipt.ErrNoPurchaseInReceipt),
		errors.Is(err, receipt.ErrNoCorrelationToken),
		errors.Is(err, receipt.ErrSubscriptionCancelled),
		errors.Is(err, receipt.ErrPaymentNotYetReceived),
		errors.Is(err, receipt.ErrInvalidWindow):
		return http.StatusBadRequest, response.APIResponseCodeBadRequest
	default:
		return http.StatusInternalServerError, response.APIResponseCodeError
	}
}

func writeError(c *gin.Context, log *zap.SugaredLogger, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		logctx.FromGin(c, log).Errorw("request_failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, response.ErrorT[any](code, err.Error()))
}
