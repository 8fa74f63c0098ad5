// Package api builds the player and gift code requests sent through the
// retrying client.
package api

import (
	"context"
	"fmt"
	"time"

	client "github.com/peteraglen/giftcode-client"
)

const (
	PlayerPath   = "/player"
	GiftCodePath = "/gift_code"

	// DefaultWarmUp is waited before every player lookup to stagger bursts
	// of lookups.
	DefaultWarmUp = 1500 * time.Millisecond

	formContentType = "application/x-www-form-urlencoded"
)

// Poster sends a POST request. [*client.Client] implements it.
type Poster interface {
	Post(ctx context.Context, req *client.Request) (*client.Response, error)
}

type Service struct {
	poster Poster
	signer Signer
	warmUp time.Duration
}

type ServiceOption func(*Service)

// WithWarmUp overrides the wait before player lookups. Negative values are
// ignored.
func WithWarmUp(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d >= 0 {
			s.warmUp = d
		}
	}
}

func NewService(poster Poster, signer Signer, opts ...ServiceOption) *Service {
	s := &Service{
		poster: poster,
		signer: signer,
		warmUp: DefaultWarmUp,
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

// FetchPlayer waits for the warm-up delay and then posts the signed payload
// to the player endpoint. The response body is returned as received.
func (s *Service) FetchPlayer(ctx context.Context, payload map[string]string) (*client.Response, error) {
	if err := s.waitWarmUp(ctx); err != nil {
		return nil, err
	}

	return s.post(ctx, PlayerPath, payload)
}

// RedeemGiftCode posts the signed payload to the gift code endpoint.
func (s *Service) RedeemGiftCode(ctx context.Context, payload map[string]string) (*client.Response, error) {
	return s.post(ctx, GiftCodePath, payload)
}

func (s *Service) post(ctx context.Context, path string, payload map[string]string) (*client.Response, error) {
	return s.poster.Post(ctx, &client.Request{
		URL:      path,
		Headers:  map[string]string{"Content-Type": formContentType},
		FormData: s.signer.Sign(payload),
	})
}

func (s *Service) waitWarmUp(ctx context.Context) error {
	if err := client.Sleep(ctx, s.warmUp); err != nil {
		return fmt.Errorf("warm-up interrupted: %w", err)
	}

	return nil
}
