package paymentrequest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"billpay-be/internal/logger"
	"billpay-be/internal/payment"
	"billpay-be/internal/utils"

	"go.uber.org/zap"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100

	maxIDAttempts = 3
)

var (
	ErrPersistence = errors.New("failed to save payment request")
	ErrLoad        = errors.New("failed to fetch payment requests")
)

// LinkConfig holds what the shareable links are built from.
type LinkConfig struct {
	PublicAppURL string
	UPIVPA       string
	PayeeName    string
}

type Service interface {
	Create(ctx context.Context, userID string, in CreateInput) (*View, error)
	List(ctx context.Context, userID string, limit, offset int) ([]View, error)
}

type service struct {
	repo      Repository
	links     LinkConfig
	validator *inputValidator

	now   func() time.Time
	newID func() string
}

func NewService(repo Repository, links LinkConfig) Service {
	return &service{
		repo:      repo,
		links:     links,
		validator: newInputValidator(),
		now:       time.Now,
		newID:     utils.GenerateRequestID,
	}
}

func (s *service) Create(ctx context.Context, userID string, in CreateInput) (*View, error) {
	if userID == "" {
		return nil, payment.ErrUnauthorized
	}
	if err := s.validator.check(&in); err != nil {
		return nil, err
	}

	description := in.Description
	if description == "" {
		description = DefaultDescription
	}

	now := s.now().UTC()
	pr := &PaymentRequest{
		UserID:         userID,
		Amount:         in.Amount.Round(2),
		Description:    description,
		RequesterEmail: utils.StrPtr(in.RequesterEmail),
		RequesterPhone: utils.StrPtr(in.RequesterPhone),
		Status:         StatusPending,
		ExpiresAt:      now.Add(ExpiryWindow),
	}

	var err error
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		pr.RequestID = s.newID()
		err = s.repo.Create(ctx, pr)
		if !errors.Is(err, ErrDuplicateRequestID) {
			break
		}
		logger.FromCtx(ctx).Warn("Payment request id collision", zap.String("request_id", pr.RequestID))
	}
	if err != nil {
		logger.FromCtx(ctx).Error("Failed to save payment request",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	logger.FromCtx(ctx).Info("Payment request created",
		zap.String("request_id", pr.RequestID),
		zap.String("user_id", userID),
	)
	return s.view(pr), nil
}

func (s *service) List(ctx context.Context, userID string, limit, offset int) ([]View, error) {
	if userID == "" {
		return nil, payment.ErrUnauthorized
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	requests, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	views := make([]View, 0, len(requests))
	for i := range requests {
		views = append(views, *s.view(&requests[i]))
	}
	return views, nil
}

func (s *service) view(pr *PaymentRequest) *View {
	return &View{
		PaymentRequest: pr,
		PaymentLink:    s.links.PublicAppURL + "/pay/" + pr.RequestID,
		UPILink:        UPILink(s.links.UPIVPA, s.links.PayeeName, pr),
	}
}

// UPILink renders the upi://pay deep link for pr.
func UPILink(vpa, payee string, pr *PaymentRequest) string {
	return "upi://pay?pa=" + vpa +
		"&pn=" + encodeComponent(payee) +
		"&am=" + pr.Amount.String() +
		"&cu=" + payment.DefaultCurrency +
		"&tn=" + encodeComponent(pr.Description) +
		"&mc=0000" +
		"&tr=" + pr.RequestID
}

// encodeComponent percent-encodes s with spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
