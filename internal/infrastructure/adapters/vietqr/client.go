package vietqr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://img.vietqr.io"
	defaultTimeout = 15 * time.Second
	fallbackSize   = 256
)

// Config represents VietQR image service configuration
type Config struct {
	BankName    string
	BankAccount string
	AccountName string
	BaseURL     string
	Timeout     time.Duration
}

// Client renders payment QR images for bank transfers. Images are
// fetched from the VietQR image service; when the service is down a
// plain QR code carrying the transfer details is generated locally.
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	logger         *zap.Logger
}

// NewClient creates a new VietQR client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}

	cbSettings := gobreaker.Settings{
		Name:        "VietQR",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("VietQR circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		logger:         logger,
	}
}

// ImageURL builds the hosted compact QR image URL for a transfer
func (c *Client) ImageURL(amount decimal.Decimal, description string) string {
	query := url.Values{}
	query.Set("amount", amount.String())
	query.Set("addInfo", description)
	query.Set("accountName", c.config.AccountName)

	return fmt.Sprintf("%s/image/%s-%s-compact.png?%s",
		c.config.BaseURL, c.config.BankName, c.config.BankAccount, query.Encode())
}

// FetchImage downloads the QR PNG for a transfer. On any remote
// failure it falls back to a locally generated QR code so the user
// still gets something scannable.
func (c *Client) FetchImage(ctx context.Context, amount decimal.Decimal, description string) ([]byte, error) {
	data, err := c.fetchRemote(ctx, amount, description)
	if err == nil {
		return data, nil
	}

	c.logger.Warn("VietQR fetch failed, generating QR locally",
		zap.String("description", description),
		zap.Error(err))

	return c.generateLocal(amount, description)
}

func (c *Client) fetchRemote(ctx context.Context, amount decimal.Decimal, description string) ([]byte, error) {
	result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ImageURL(amount, description), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}

func (c *Client) generateLocal(amount decimal.Decimal, description string) ([]byte, error) {
	content := fmt.Sprintf("Bank: %s\nAccount: %s (%s)\nAmount: %s\nContent: %s",
		c.config.BankName, c.config.BankAccount, c.config.AccountName, amount.String(), description)

	png, err := qrcode.Encode(content, qrcode.Medium, fallbackSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	return png, nil
}
