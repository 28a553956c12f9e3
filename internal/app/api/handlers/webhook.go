package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/reconciler/pkg/logctx"
	"github.com/fatflowers/reconciler/pkg/response"
)

type WebhookHandler interface {
	HandleGoogle(ctx context.Context, body []byte) error
	HandleApple(ctx context.Context, body []byte) error
}

// DefaultWebhookMaxBody applies when no positive limit is configured.
const DefaultWebhookMaxBody int64 = 1 << 20

// webhook answers 200 unless handle asks for a redelivery. Bodies over
// maxBody are refused with 413 before handle runs.
func webhook(name string, handle func(context.Context, []byte) error, maxBody int64, log *zap.SugaredLogger) gin.HandlerFunc {
	if maxBody <= 0 {
		maxBody = DefaultWebhookMaxBody
	}
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
		body, err := c.GetRawData()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				logctx.FromGin(c, log).Warnw("webhook_body_too_large", "webhook", name, "limit", tooLarge.Limit)
				c.JSON(http.StatusRequestEntityTooLarge, response.ErrorT[any](response.APIResponseCodeBadRequest, "request body too large"))
				return
			}
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if err := handle(c.Request.Context(), body); err != nil {
			logctx.FromGin(c, log).Errorw("webhook_handle_error", "webhook", name, "error", err)
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Google Play webhook
// @Description  Handles Pub/Sub push messages carrying real-time developer notifications.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        payload body string true "Pub/Sub push message"
// @Success      200  {object}  handlers.RespOK
// @Failure      413  {object}  handlers.RespOK
// @Failure      500  {object}  handlers.RespOK
// @Router       /api/v1/webhooks/google [post]
func ApiGoogleWebhook(h WebhookHandler, maxBody int64, log *zap.SugaredLogger) gin.HandlerFunc {
	return webhook("google", h.HandleGoogle, maxBody, log)
}

// @Summary      Apple webhook
// @Description  Handles App Store Server Notifications V2. The request body carries the signed JWS payload.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        payload body string true "App Store Server Notification V2 request"
// @Success      200  {object}  handlers.RespOK
// @Failure      413  {object}  handlers.RespOK
// @Failure      500  {object}  handlers.RespOK
// @Router       /api/v1/webhooks/apple [post]
func ApiAppleWebhook(h WebhookHandler, maxBody int64, log *zap.SugaredLogger) gin.HandlerFunc {
	return webhook("apple", h.HandleApple, maxBody, log)
}

// RegisterWebhookRoutes mounts both store webhooks. maxBody <= 0 uses
// DefaultWebhookMaxBody.
func RegisterWebhookRoutes(r gin.IRouter, h WebhookHandler, maxBody int64, log *zap.SugaredLogger) {
	r.POST("/google", ApiGoogleWebhook(h, maxBody, log))
	r.POST("/apple", ApiAppleWebhook(h, maxBody, log))
}
