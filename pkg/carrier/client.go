package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vendorahq/vendora-backend/pkg/config"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
)

// Client talks to the carrier tracking API. The auth token is cached and
// refreshed once when a request comes back 401.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client

	mu    sync.Mutex
	token string
}

// TrackingStatus is the normalized carrier answer for one consignment.
type TrackingStatus struct {
	TrackingNumber   string
	Status           enums.ShipmentStatus
	EstimatedArrival *time.Time
}

// New builds the carrier client from configuration.
func New(cfg config.CarrierConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("carrier base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

type authResponse struct {
	Token string `json:"token"`
}

type trackResponse struct {
	TrackingNumber   string     `json:"tracking_number"`
	Status           string     `json:"status"`
	EstimatedArrival *time.Time `json:"estimated_arrival"`
}

// Track fetches the current status for the given tracking number.
func (c *Client) Track(ctx context.Context, trackingNumber string) (*TrackingStatus, error) {
	if strings.TrimSpace(trackingNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number is required")
	}

	resp, err := c.doTrack(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}

	status, err := mapStatus(resp.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "carrier returned unknown status")
	}
	return &TrackingStatus{
		TrackingNumber: trackingNumber,
		Status:         status,
		EstimatedArrival: func() *time.Time {
			return resp.EstimatedArrival
		}(),
	}, nil
}

func (c *Client) doTrack(ctx context.Context, trackingNumber string) (*trackResponse, error) {
	token, err := c.currentToken(ctx, false)
	if err != nil {
		return nil, err
	}

	out, status, err := c.get(ctx, "/v1/track/"+trackingNumber, token)
	if status == http.StatusUnauthorized {
		// token expired upstream; refresh once and retry
		token, err = c.currentToken(ctx, true)
		if err != nil {
			return nil, err
		}
		out, status, err = c.get(ctx, "/v1/track/"+trackingNumber, token)
	}
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "carrier does not know this tracking number")
	}
	if status != http.StatusOK {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("carrier responded %d", status))
	}

	var resp trackResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding carrier response")
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path, token string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling carrier api")
	}
	defer res.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(res.Body); err != nil {
		return nil, res.StatusCode, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading carrier response")
	}
	return buf.Bytes(), res.StatusCode, nil
}

func (c *Client) currentToken(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && !force {
		return c.token, nil
	}

	payload, err := json.Marshal(map[string]string{
		"api_key":    c.apiKey,
		"api_secret": c.apiSecret,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth/token", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "authenticating with carrier")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("carrier auth responded %d", res.StatusCode))
	}

	var auth authResponse
	if err := json.NewDecoder(res.Body).Decode(&auth); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding carrier auth response")
	}
	if auth.Token == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "carrier auth returned empty token")
	}

	c.token = auth.Token
	return c.token, nil
}

var statusByCarrierCode = map[string]enums.ShipmentStatus{
	"PRE_TRANSIT":      enums.ShipmentStatusPreTransit,
	"IN_TRANSIT":       enums.ShipmentStatusInTransit,
	"OUT_FOR_DELIVERY": enums.ShipmentStatusOutForDelivery,
	"DELIVERED":        enums.ShipmentStatusDelivered,
	"FAILURE":          enums.ShipmentStatusFailure,
	"RTO":              enums.ShipmentStatusFailure,
}

func mapStatus(raw string) (enums.ShipmentStatus, error) {
	if status, ok := statusByCarrierCode[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return status, nil
	}
	return "", fmt.Errorf("unknown carrier status %q", raw)
}
