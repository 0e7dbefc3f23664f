package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/offline-payment-sync/internal/config"
	"github.com/offline-payment-sync/internal/domain/payment"
)

const maxErrorBody = 1 << 10

// HTTPClient settles transactions against a processor's REST endpoint
type HTTPClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPClient creates a settlement client bounded by cfg.Timeout per call
func NewHTTPClient(logger *slog.Logger, cfg *config.SettlementConfig) *HTTPClient {
	return &HTTPClient{
		endpoint: strings.TrimRight(cfg.URL, "/") + "/payments",
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

func (c *HTTPClient) Settle(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settlement request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build settlement request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.TransactionID.String())
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		reason := "processor unreachable"
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			reason = "processor timed out"
		}
		return nil, &payment.SettlementFailure{Reason: reason, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("Settlement call finished",
		"transaction_id", req.TransactionID.String(),
		"status_code", resp.StatusCode,
		"latency", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &payment.SettlementFailure{
			Reason: fmt.Sprintf("processor rejected charge with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &payment.SettlementFailure{Reason: "unreadable processor response", Err: err}
	}
	if result.ProviderTransactionID == "" {
		return nil, &payment.SettlementFailure{Reason: "processor response without transaction id"}
	}

	return &result, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
