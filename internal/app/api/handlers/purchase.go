package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mw "github.com/fatflowers/reconciler/internal/app/api/middleware"
	"github.com/fatflowers/reconciler/internal/models"
	"github.com/fatflowers/reconciler/pkg/response"
	"github.com/fatflowers/reconciler/pkg/types"
)

// PurchaseAPI is the part of the purchase service exposed to clients.
type PurchaseAPI interface {
	Start(ctx context.Context, userID, productID string, provider types.PaymentProvider) (*models.Purchase, error)
	Cancel(ctx context.Context, userID, purchaseID string) (*models.Purchase, error)
	Complete(ctx context.Context, userID, purchaseID, receiptData string) (*models.Purchase, error)
	Get(ctx context.Context, userID, purchaseID string) (*models.Purchase, error)
	List(ctx context.Context, userID string) ([]*models.Purchase, error)
	History(ctx context.Context, userID, purchaseID string) ([]*models.PurchaseHistory, error)
}

type StartPurchaseRequest struct {
	ProductID  string                `json:"product_id" binding:"required"`
	ProviderID types.PaymentProvider `json:"provider_id" binding:"required"`
}

type CompletePurchaseRequest struct {
	// Receipt is the base64 App Store receipt or the Play purchase token.
	Receipt string `json:"receipt" binding:"required"`
}

// @Summary      Start purchase
// @Description  Opens a purchase attempt, or returns the user's open attempt for the product. The returned id goes to the store as the correlation token.
// @Tags         Purchase
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "User id"
// @Param        request body handlers.StartPurchaseRequest true "Product to buy"
// @Success      200  {object}  handlers.RespPurchase
// @Failure      409  {object}  handlers.RespOK
// @Router       /api/v1/purchases [post]
func ApiStartPurchase(svc PurchaseAPI, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StartPurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		p, err := svc.Start(c.Request.Context(), mw.UserID(c), req.ProductID, req.ProviderID)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(p))
	}
}

// @Summary      List purchases
// @Tags         Purchase
// @Produce      json
// @Param        X-User-ID header string true "User id"
// @Success      200  {object}  handlers.RespPurchaseList
// @Router       /api/v1/purchases [get]
func ApiListPurchases(svc PurchaseAPI, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.List(c.Request.Context(), mw.UserID(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(list))
	}
}

// @Summary      Get purchase
// @Tags         Purchase
// @Produce      json
// @Param        X-User-ID header string true "User id"
// @Param        id path string true "Purchase id"
// @Success      200  {object}  handlers.RespPurchase
// @Failure      404  {object}  handlers.RespOK
// @Router       /api/v1/purchases/{id} [get]
func ApiGetPurchase(svc PurchaseAPI, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.Get(c.Request.Context(), mw.UserID(c), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(p))
	}
}

// @Summary      Purchase history
// @Description  Lists the purchase's transitions in the order they happened.
// @Tags         Purchase
// @Produce      json
// @Param        X-User-ID header string true "User id"
// @Param        id path string true "Purchase id"
// @Success      200  {object}  handlers.RespPurchaseHistory
// @Failure      404  {object}  handlers.RespOK
// @Router       /api/v1/purchases/{id}/history [get]
func ApiPurchaseHistory(svc PurchaseAPI, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := svc.History(c.Request.Context(), mw.UserID(c), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

// @Summary      Cancel purchase
// @Description  Abandons a started purchase attempt.
// @Tags         Purchase
// @Produce      json
// @Param        X-User-ID header string true "User id"
// @Param        id path string true "Purchase id"
// @Success      200  {object}  handlers.RespPurchase
// @Failure      409  {object}  handlers.RespOK
// @Router       /api/v1/purchases/{id}/cancel [post]
func ApiCancelPurchase(svc PurchaseAPI, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.Cancel(c.Request.Context(), mw.UserID(c), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(p))
	}
}

// @Summary      Complete purchase
// @Description  Validates the store receipt and completes a started purchase.
// @Tags         Purchase
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "User id"
// @Param        id path string true "Purchase id"
// @Param        request body handlers.CompletePurchaseRequest true "Store receipt"
// @Success      200  {object}  handlers.RespPurchase
// @Failure      400  {object}  handlers.RespOK
// @Failure      403  {object}  handlers.RespOK
// @Failure      409  {object}  handlers.RespOK
// @Failure      502  {object}  handlers.RespOK
// @Router       /api/v1/purchases/{id}/complete [post]
func ApiCompletePurchase(svc PurchaseAPI, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CompletePurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		p, err := svc.Complete(c.Request.Context(), mw.UserID(c), c.Param("id"), req.Receipt)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(p))
	}
}

// RegisterPurchaseRoutes mounts the client routes; r must run UserMiddleware.
func RegisterPurchaseRoutes(r gin.IRouter, svc PurchaseAPI, log *zap.SugaredLogger) {
	r.POST("", ApiStartPurchase(svc, log))
	r.GET("", ApiListPurchases(svc, log))
	r.GET("/:id", ApiGetPurchase(svc, log))
	r.GET("/:id/history", ApiPurchaseHistory(svc, log))
	r.POST("/:id/cancel", ApiCancelPurchase(svc, log))
	r.POST("/:id/complete", ApiCompletePurchase(svc, log))
}
