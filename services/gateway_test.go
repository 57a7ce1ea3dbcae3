package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachdesk/commission_engine/models"
)

func TestGatewayPayout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v1/payouts", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req models.PayoutRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "batch-1", req.BatchID)
		assert.Equal(t, "batch-1", req.IdempotencyKey)
		assert.Equal(t, 75.0, req.Amount)

		json.NewEncoder(w).Encode(models.GatewayResponse{
			Success: true,
			Data: map[string]interface{}{
				"status":      "succeeded",
				"referenceId": "gw-123",
			},
		})
	}))
	defer srv.Close()

	gw := NewGatewayServiceWith(srv.URL, "test-key", 5*time.Second)
	result, err := gw.Payout(context.Background(), models.PayoutRequest{
		BatchID:        "batch-1",
		Amount:         75,
		Currency:       "USD",
		Method:         "bank_transfer",
		IdempotencyKey: "batch-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.GatewayStatusSucceeded, result.Status)
	assert.Equal(t, "gw-123", result.ReferenceID)
}

func TestGatewayPayoutRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.GatewayResponse{
			Success: false,
			Code:    "INSUFFICIENT_BALANCE",
			Message: "merchant balance too low",
		})
	}))
	defer srv.Close()

	gw := NewGatewayServiceWith(srv.URL, "test-key", 5*time.Second)
	_, err := gw.Payout(context.Background(), models.PayoutRequest{BatchID: "batch-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrGatewayFailure)
	assert.Contains(t, err.Error(), "merchant balance too low")
}

func TestGatewayTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	gw := NewGatewayServiceWith(srv.URL, "test-key", 50*time.Millisecond)
	_, err := gw.Payout(context.Background(), models.PayoutRequest{BatchID: "batch-1"})
	assert.ErrorIs(t, err, models.ErrGatewayTimeout)
}

func TestGatewayPayoutStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/v1/payouts/batch-9", r.URL.Path)
		json.NewEncoder(w).Encode(models.GatewayResponse{
			Success: true,
			Data:    map[string]interface{}{"status": "pending"},
		})
	}))
	defer srv.Close()

	gw := NewGatewayServiceWith(srv.URL, "test-key", 5*time.Second)
	result, err := gw.PayoutStatus(context.Background(), "batch-9")
	require.NoError(t, err)
	assert.Equal(t, models.GatewayStatusPending, result.Status)
}

func TestGatewayMissingCredentials(t *testing.T) {
	gw := NewGatewayServiceWith("", "", time.Second)
	_, err := gw.Payout(context.Background(), models.PayoutRequest{BatchID: "batch-1"})
	assert.Error(t, err)
}

func TestGatewayUnparseableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.GatewayResponse{Success: true})
	}))
	defer srv.Close()

	gw := NewGatewayServiceWith(srv.URL, "test-key", 5*time.Second)
	_, err := gw.Payout(context.Background(), models.PayoutRequest{BatchID: "batch-1"})
	assert.Error(t, err)
}
