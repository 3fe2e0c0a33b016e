package carrier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vendorahq/vendora-backend/pkg/config"
	"github.com/vendorahq/vendora-backend/pkg/enums"
)

func newTestServer(t *testing.T, trackHandler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
	})
	mux.HandleFunc("/v1/track/", trackHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := New(config.CarrierConfig{
		BaseURL: srv.URL,
		APIKey:  "key",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, client
}

func TestTrackReturnsMappedStatus(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tracking_number": "AWB123",
			"status":          "out_for_delivery",
		})
	})

	status, err := client.Track(context.Background(), "AWB123")
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if status.Status != enums.ShipmentStatusOutForDelivery {
		t.Fatalf("unexpected status %s", status.Status)
	}
}

func TestTrackRefreshesTokenOn401(t *testing.T) {
	var calls int32
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tracking_number": "AWB123",
			"status":          "DELIVERED",
		})
	})

	status, err := client.Track(context.Background(), "AWB123")
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if status.Status != enums.ShipmentStatusDelivered {
		t.Fatalf("unexpected status %s", status.Status)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected exactly one retry, got %d track calls", calls)
	}
}

func TestTrackRejectsUnknownStatus(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tracking_number": "AWB123",
			"status":          "TELEPORTED",
		})
	})

	if _, err := client.Track(context.Background(), "AWB123"); err == nil {
		t.Fatal("expected error for unknown carrier status")
	}
}

func TestTrackRequiresTrackingNumber(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	if _, err := client.Track(context.Background(), " "); err == nil {
		t.Fatal("expected validation error")
	}
}
