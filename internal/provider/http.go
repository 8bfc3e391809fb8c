package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ignite/listkeeper/internal/domain"
	"github.com/ignite/listkeeper/internal/pkg/httpretry"
)

// HTTPConfig configures the REST bounce feed.
type HTTPConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	PageSize int    `yaml:"page_size"`
}

// HTTPSource pulls per-list bounce events from the delivery platform's
// REST API. It carries soft bounces, which the SES suppression list never
// reports.
type HTTPSource struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient httpretry.HTTPDoer
}

// NewHTTPSource creates a REST-backed bounce source.
func NewHTTPSource(cfg HTTPConfig) *HTTPSource {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}
	return &HTTPSource{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		pageSize: pageSize,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 60 * time.Second,
		}, 3),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (s *HTTPSource) SetHTTPClient(client httpretry.HTTPDoer) {
	s.httpClient = client
}

type bounceFeedResponse struct {
	Events []struct {
		Email      string    `json:"email"`
		ExternalID string    `json:"contact_id"`
		Type       string    `json:"type"`
		OccurredAt time.Time `json:"occurred_at"`
		Diagnostic string    `json:"diagnostic"`
	} `json:"events"`
	HasMore bool `json:"has_more"`
}

// FetchBounces pages through the feed until the provider reports no more
// events for the window.
func (s *HTTPSource) FetchBounces(ctx context.Context, listExternalID string, since time.Time) ([]domain.BounceEvent, error) {
	var events []domain.BounceEvent

	for page := 1; ; page++ {
		resp, err := s.fetchPage(ctx, listExternalID, since, page)
		if err != nil {
			return nil, err
		}

		for _, e := range resp.Events {
			bounceType, ok := parseBounceType(e.Type)
			if !ok {
				continue
			}
			events = append(events, domain.BounceEvent{
				Email:             e.Email,
				ContactExternalID: e.ExternalID,
				BounceType:        bounceType,
				BouncedAt:         e.OccurredAt,
				Diagnostic:        e.Diagnostic,
			})
		}

		if !resp.HasMore {
			return events, nil
		}
	}
}

func (s *HTTPSource) fetchPage(ctx context.Context, listExternalID string, since time.Time, page int) (*bounceFeedResponse, error) {
	params := url.Values{}
	params.Set("list_id", listExternalID)
	params.Set("since", since.UTC().Format(time.RFC3339))
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(s.pageSize))

	reqURL := fmt.Sprintf("%s/v1/bounces?%s", s.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bounce feed request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bounce feed error (status %d): %s", resp.StatusCode, string(body))
	}

	var feed bounceFeedResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse bounce feed: %w", err)
	}
	return &feed, nil
}

func parseBounceType(raw string) (domain.BounceType, bool) {
	switch raw {
	case "hard", "hard_bounce":
		return domain.BounceHard, true
	case "soft", "soft_bounce":
		return domain.BounceSoft, true
	case "complaint", "spam_complaint":
		return domain.BounceComplaint, true
	default:
		return "", false
	}
}
