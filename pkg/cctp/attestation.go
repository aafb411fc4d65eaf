package cctp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/stablerelay/transfer-middleware/pkg/config"
)

const (
	attestationStatusComplete = "complete"
	attestationStatusPending  = "pending_confirmations"
)

// AttestationClient polls the attestation service for a signed attestation
// over a burn message.
type AttestationClient struct {
	baseURL      string
	pollInterval time.Duration
	timeout      time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewAttestationClient creates a client for the configured attestation service.
func NewAttestationClient(cfg config.AttestationConfig, logger *zap.Logger) *AttestationClient {
	return &AttestationClient{
		baseURL:      cfg.BaseURL,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}
}

type attestationResponse struct {
	Status      string `json:"status"`
	Attestation string `json:"attestation"`
}

// Fetch polls until the attestation for the given message hash is complete or
// the configured timeout elapses. The returned attestation is the hex string
// as served, suitable for persisting and for the mint call.
func (c *AttestationClient) Fetch(ctx context.Context, messageHash common.Hash) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	url := fmt.Sprintf("%s/attestations/%s", c.baseURL, messageHash.Hex())

	for {
		attestation, done, err := c.fetchOnce(ctx, url)
		if err != nil {
			c.logger.Warn("Attestation poll failed, will retry",
				zap.String("message_hash", messageHash.Hex()),
				zap.Error(err))
		} else if done {
			return attestation, nil
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("timed out waiting for attestation of %s: %w", messageHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *AttestationClient) fetchOnce(ctx context.Context, url string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// Not yet indexed by the attestation service, keep polling.
		return "", false, nil
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("attestation service returned %d", resp.StatusCode)
	}

	var body attestationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false, fmt.Errorf("failed to decode attestation response: %w", err)
	}

	if body.Status != attestationStatusComplete {
		return "", false, nil
	}
	if body.Attestation == "" {
		return "", false, fmt.Errorf("attestation service reported complete without a payload")
	}
	return body.Attestation, true, nil
}
