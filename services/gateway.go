package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/coachdesk/commission_engine/models"
)

// Gateway is the payment-gateway surface the payout batcher depends on.
type Gateway interface {
	Payout(ctx context.Context, req models.PayoutRequest) (*models.GatewayResult, error)
	PayoutStatus(ctx context.Context, batchID string) (*models.GatewayResult, error)
}

// GatewayService talks to the external payment gateway over HTTP. Calls are
// bounded by a timeout; a timed-out payout is reported as ErrGatewayTimeout
// so the batch stays in processing for later reconciliation instead of being
// retried blindly into a double payment.
type GatewayService struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGatewayService creates a gateway client from environment configuration
func NewGatewayService() *GatewayService {
	baseURL := os.Getenv("GATEWAY_BASE_URL")
	apiKey := os.Getenv("GATEWAY_API_KEY")

	timeout := 30 * time.Second
	if t := os.Getenv("GATEWAY_TIMEOUT_SECONDS"); t != "" {
		if secs, err := strconv.Atoi(t); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}

	if baseURL == "" || apiKey == "" {
		log.Printf("WARNING: payment gateway not fully configured:")
		if baseURL == "" {
			log.Printf("  - GATEWAY_BASE_URL is missing")
		}
		if apiKey == "" {
			log.Printf("  - GATEWAY_API_KEY is missing")
		}
		log.Printf("Set these environment variables for payouts to work")
	} else {
		log.Printf("Payment gateway configuration:")
		log.Printf("  Base URL: %s", baseURL)
		log.Printf("  Timeout: %s", timeout)
		log.Printf("  API key: [CONFIGURED]")
	}

	return &GatewayService{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// NewGatewayServiceWith builds a client against an explicit endpoint, used by
// tests.
func NewGatewayServiceWith(baseURL, apiKey string, timeout time.Duration) *GatewayService {
	return &GatewayService{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *GatewayService) makeRequest(ctx context.Context, method, endpoint string, payload interface{}) (*models.GatewayResponse, error) {
	if s.baseURL == "" || s.apiKey == "" {
		return nil, fmt.Errorf("missing gateway credentials, set GATEWAY_BASE_URL and GATEWAY_API_KEY")
	}

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, models.ErrGatewayTimeout
		}
		return nil, fmt.Errorf("%w: %v", models.ErrGatewayFailure, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if os.Getenv("GATEWAY_DEBUG") == "true" {
		log.Printf("Gateway response [%d]: %s", resp.StatusCode, string(respBody))
	}

	var gwResp models.GatewayResponse
	if err := json.Unmarshal(respBody, &gwResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if !gwResp.Success {
		msg := gwResp.Message
		if msg == "" {
			msg = gwResp.Code
		}
		return &gwResp, fmt.Errorf("%w: %s", models.ErrGatewayFailure, msg)
	}

	return &gwResp, nil
}

// Payout submits one batch settlement to the gateway.
func (s *GatewayService) Payout(ctx context.Context, req models.PayoutRequest) (*models.GatewayResult, error) {
	resp, err := s.makeRequest(ctx, "POST", "/v1/payouts", req)
	if err != nil {
		return nil, err
	}
	return parseResult(resp)
}

// PayoutStatus asks the gateway for the definitive state of a previously
// submitted batch, keyed by our batch id.
func (s *GatewayService) PayoutStatus(ctx context.Context, batchID string) (*models.GatewayResult, error) {
	resp, err := s.makeRequest(ctx, "GET", "/v1/payouts/"+batchID, nil)
	if err != nil {
		return nil, err
	}
	return parseResult(resp)
}

func parseResult(resp *models.GatewayResponse) (*models.GatewayResult, error) {
	result := &models.GatewayResult{}
	if status, ok := resp.Data["status"].(string); ok {
		result.Status = status
	}
	if ref, ok := resp.Data["referenceId"].(string); ok {
		result.ReferenceID = ref
	}
	if result.Status == "" {
		return nil, fmt.Errorf("failed to parse payout status from response")
	}
	return result, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
