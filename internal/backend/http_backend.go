package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/driver-dispatch/internal/models"
)

// HTTPBackend talks to a real dispatch backend over its JSON HTTP API.
type HTTPBackend struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPBackend(baseURL string) *HTTPBackend {
	return &HTTPBackend{BaseURL: baseURL, Client: &http.Client{Timeout: 5 * time.Second}}
}

func (h *HTTPBackend) SetDriverOnline(ctx context.Context, driverID string, loc models.Coord) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	body := map[string]any{"driver_id": driverID, "location": loc}
	if err := h.post(ctx, "/v1/drivers/online", body, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

func (h *HTTPBackend) SetDriverOffline(ctx context.Context, driverID string) error {
	return h.post(ctx, "/v1/drivers/offline", map[string]any{"driver_id": driverID}, nil)
}

func (h *HTTPBackend) UpdateDriverHeartbeat(ctx context.Context, driverID string, loc models.Coord) error {
	return h.post(ctx, "/v1/drivers/heartbeat", map[string]any{"driver_id": driverID, "location": loc}, nil)
}

func (h *HTTPBackend) GetAvailableRequests(ctx context.Context) ([]models.PickupRequest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.BaseURL+"/v1/requests/available", nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend status %d", resp.StatusCode)
	}
	var out []models.PickupRequest
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *HTTPBackend) CheckExpiredRequests(ctx context.Context) (int, error) {
	var out struct {
		Expired int `json:"expired"`
	}
	if err := h.post(ctx, "/v1/requests/sweep-expired", nil, &out); err != nil {
		return 0, err
	}
	return out.Expired, nil
}

func (h *HTTPBackend) AcceptRequest(ctx context.Context, requestID string) error {
	err := h.post(ctx, "/v1/requests/"+requestID+"/accept", nil, nil)
	if se, ok := err.(*statusError); ok && se.code == http.StatusConflict {
		return ErrAlreadyTaken
	}
	return err
}

func (h *HTTPBackend) UpdateDriverLocation(ctx context.Context, jobID string, loc models.Coord) error {
	return h.post(ctx, "/v1/jobs/"+jobID+"/location", map[string]any{"location": loc}, nil)
}

type statusError struct{ code int }

func (s *statusError) Error() string { return fmt.Sprintf("backend status %d", s.code) }

func (h *HTTPBackend) post(ctx context.Context, path string, body, out any) error {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
