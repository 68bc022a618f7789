package vietqr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() Config {
	return Config{
		BankName:    "MBBank",
		BankAccount: "0123456789",
		AccountName: "TIKUP SHOP",
	}
}

func TestImageURL(t *testing.T) {
	client := NewClient(testConfig(), zap.NewNop())

	got := client.ImageURL(decimal.NewFromInt(50000), "TIKUP12345")

	assert.Contains(t, got, "https://img.vietqr.io/image/MBBank-0123456789-compact.png")
	assert.Contains(t, got, "amount=50000")
	assert.Contains(t, got, "addInfo=TIKUP12345")
	assert.Contains(t, got, "accountName=TIKUP+SHOP")
}

func TestFetchImage_Remote(t *testing.T) {
	png := []byte("\x89PNG fake image bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "addInfo=TIKUP12345")
		w.Write(png)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.BaseURL = server.URL
	client := NewClient(cfg, zap.NewNop())

	got, err := client.FetchImage(context.Background(), decimal.NewFromInt(50000), "TIKUP12345")

	require.NoError(t, err)
	assert.Equal(t, png, got)
}

func TestFetchImage_FallsBackToLocalQR(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.BaseURL = server.URL
	client := NewClient(cfg, zap.NewNop())

	got, err := client.FetchImage(context.Background(), decimal.NewFromInt(20000), "TIKUP99")

	require.NoError(t, err)
	assert.NotEmpty(t, got)
	// PNG magic bytes from the locally generated code.
	assert.Equal(t, byte(0x89), got[0])
}
