package recordgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fabrica/fabrica/internal/schema"
)

// Remote asks a generation model service for field values over HTTP. One
// request per value; the coordinator batches, retries, and rate-limits.
type Remote struct {
	// Endpoint is the full URL of the value-generation endpoint.
	Endpoint string
	// APIKey is sent as a bearer token. Empty sends no Authorization header.
	APIKey string
	// Model names the model to generate with; optional.
	Model string
	// HTTPClient overrides the default client. Nil uses a 30s-timeout client.
	HTTPClient *http.Client
}

type remoteRequest struct {
	Entity      string                `json:"entity"`
	Field       string                `json:"field"`
	Type        string                `json:"type"`
	Constraints *schema.ConstraintSet `json:"constraints,omitempty"`
	Row         map[string]any        `json:"row,omitempty"`
	Index       int                   `json:"index"`
	Model       string                `json:"model,omitempty"`
}

type remoteResponse struct {
	Value any    `json:"value"`
	Error string `json:"error,omitempty"`
}

// GenerateValue requests one value from the remote service.
func (r *Remote) GenerateValue(ctx context.Context, req Request) (any, error) {
	if req.Spec.Type == schema.TypeForeignKey {
		return nil, ErrForeignKeyField
	}

	body, err := json.Marshal(remoteRequest{
		Entity:      req.Entity.Name,
		Field:       req.Field,
		Type:        string(req.Spec.Type),
		Constraints: req.Spec.Constraints,
		Row:         req.Row,
		Index:       req.Index,
		Model:       r.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.APIKey)
	}

	client := r.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling generation service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("generation service returned %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding generation response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("generation service error: %s", out.Error)
	}
	return out.Value, nil
}
