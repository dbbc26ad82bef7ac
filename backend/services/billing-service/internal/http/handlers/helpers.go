package handlers

import (
	"net/http"

	"meterpay/backend/libs/httpx"
)

const (
	msgBillPaid     = "Bill paid successfully"
	msgPlanNotFound = "Plan not found"
	msgServerError  = "Server Error"
)

type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeSuccess(w http.ResponseWriter, message string, data interface{}) {
	httpx.WriteJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	httpx.WriteJSON(w, status, envelope{Success: false, Message: message})
}
