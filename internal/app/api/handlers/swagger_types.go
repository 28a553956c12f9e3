package handlers

import (
	"github.com/fatflowers/reconciler/internal/models"
	"github.com/fatflowers/reconciler/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespPurchase struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Purchase          `json:"data"`
}

type RespPurchaseList struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.Purchase        `json:"data"`
}

type RespPurchaseHistory struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.PurchaseHistory `json:"data"`
}
