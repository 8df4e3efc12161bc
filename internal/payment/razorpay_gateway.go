package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"billpay-be/internal/logger"

	"go.uber.org/zap"
)

const (
	razorpayDefaultBaseURL = "https://api.razorpay.com"
	razorpayReceiptMaxLen  = 40
)

type razorpayGateway struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

// ----------------- Constructor -----------------

func NewRazorpayGateway(keyID, keySecret, baseURL string) Gateway {
	if keyID == "" || keySecret == "" {
		logger.L().Warn("Razorpay keys not configured; order creation will be rejected")
	}
	if baseURL == "" {
		baseURL = razorpayDefaultBaseURL
	}

	return &razorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (g *razorpayGateway) Configured() bool {
	return g.keyID != "" && g.keySecret != ""
}

func (g *razorpayGateway) KeyID() string {
	return g.keyID
}

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// ----------------- CreateOrder -----------------

func (g *razorpayGateway) CreateOrder(ctx context.Context, in OrderRequest) (*Order, error) {
	if !g.Configured() {
		return nil, ErrGatewayNotConfigured
	}

	log := logger.FromCtx(ctx).With(
		zap.Int64("amount_minor", in.AmountMinor),
		zap.String("currency", in.Currency),
	)

	receipt := in.Receipt
	if utf8.RuneCountInString(receipt) > razorpayReceiptMaxLen {
		receipt = string([]rune(receipt)[:razorpayReceiptMaxLen])
	}

	jsonBody, err := json.Marshal(razorpayOrderRequest{
		Amount:   in.AmountMinor,
		Currency: in.Currency,
		Receipt:  receipt,
		Notes:    in.Notes,
	})
	if err != nil {
		log.Error("Failed to marshal order request", zap.Error(err))
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(jsonBody))
	if err != nil {
		log.Error("Failed creating request", zap.Error(err))
		return nil, err
	}

	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")

	log.Info("Sending order request to Razorpay")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Error("Razorpay request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read response body", zap.Error(err))
		return nil, fmt.Errorf("%w: failed to read razorpay response: %v", ErrGatewayFailure, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error("Razorpay returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: bodyBytes}
	}

	var res razorpayOrderResponse
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		log.Error("Failed decoding Razorpay response", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	if res.ID == "" {
		log.Error("Razorpay response without order id", zap.ByteString("response", bodyBytes))
		return nil, fmt.Errorf("%w: missing order id", ErrGatewayFailure)
	}

	log.Info("Razorpay order created",
		zap.String("order_id", res.ID),
		zap.String("status", res.Status),
	)

	return &Order{
		ID:          res.ID,
		AmountMinor: res.Amount,
		Currency:    res.Currency,
		Receipt:     res.Receipt,
		Status:      res.Status,
	}, nil
}
