package models

// PayoutRequest is what the engine sends to the payment gateway for one
// batch. IdempotencyKey is the batch id, so gateway-side retries of the same
// batch cannot double-pay.
type PayoutRequest struct {
	BatchID        string  `json:"batchId"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	Method         string  `json:"method"`
	Destination    string  `json:"destination"`
	IdempotencyKey string  `json:"idempotencyKey"`
}

// Gateway result statuses. "pending" means the gateway accepted the request
// but has not settled it; the batch stays processing until reconciled.
const (
	GatewayStatusSucceeded = "succeeded"
	GatewayStatusFailed    = "failed"
	GatewayStatusPending   = "pending"
)

// GatewayResult is the gateway's answer to a payout or status query.
type GatewayResult struct {
	Status      string `json:"status"`
	ReferenceID string `json:"referenceId"`
	Message     string `json:"message,omitempty"`
}

// GatewayResponse is the raw envelope the gateway speaks.
type GatewayResponse struct {
	Success bool                   `json:"success"`
	Code    string                 `json:"code,omitempty"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
