package travelrequest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// Config holds the request tracking service endpoint
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the travel request service over its REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// requestDTO is the wire shape; dates arrive as ISO dates or RFC3339 timestamps.
type requestDTO struct {
	ID            string   `json:"travelRequestId"`
	EmployeeID    string   `json:"employeeId"`
	StartDate     string   `json:"startDate"`
	EndDate       string   `json:"endDate"`
	EstimatedCost *float64 `json:"estimatedCost"`
	Purpose       string   `json:"purpose"`
	Status        string   `json:"status"`
}

// FetchRequest returns (nil, nil) when the service answers 404.
func (c *Client) FetchRequest(ctx context.Context, travelRequestID string) (*entity.TravelRequest, error) {
	resp, err := c.do(ctx, http.MethodGet, c.requestURL(travelRequestID, "", nil))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("failed to fetch travel request %s: %w", travelRequestID, err)
	}

	var dto requestDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("failed to decode travel request: %w", err)
	}

	req := &entity.TravelRequest{
		ID:            dto.ID,
		EmployeeID:    dto.EmployeeID,
		EstimatedCost: dto.EstimatedCost,
		Purpose:       dto.Purpose,
		Status:        dto.Status,
	}
	if req.ID == "" {
		req.ID = travelRequestID
	}
	if req.StartDate, err = parseDate(dto.StartDate); err != nil {
		return nil, fmt.Errorf("invalid start date: %w", err)
	}
	if req.EndDate, err = parseDate(dto.EndDate); err != nil {
		return nil, fmt.Errorf("invalid end date: %w", err)
	}
	return req, nil
}

func (c *Client) SetRequestStatus(ctx context.Context, travelRequestID, status string) error {
	u := c.requestURL(travelRequestID, "/status", url.Values{"status": {status}})
	return c.send(ctx, http.MethodPost, u, "update travel request status")
}

func (c *Client) SetActualCost(ctx context.Context, travelRequestID string, amount float64) error {
	u := c.requestURL(travelRequestID, "/actual-cost", url.Values{
		"actualCost": {strconv.FormatFloat(amount, 'f', -1, 64)},
	})
	return c.send(ctx, http.MethodPatch, u, "update actual cost")
}

func (c *Client) send(ctx context.Context, method, u, what string) error {
	resp, err := c.do(ctx, method, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Travel request service unreachable", zap.String("method", method), zap.String("url", u), zap.Error(err))
		return nil, fmt.Errorf("travel request service unreachable: %w", err)
	}
	return resp, nil
}

func (c *Client) requestURL(id, suffix string, query url.Values) string {
	u := c.baseURL + "/api/travel-requests/" + url.PathEscape(id) + suffix
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", s)
}

var _ port.RequestTracker = (*Client)(nil)
