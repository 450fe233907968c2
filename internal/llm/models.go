package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ListModels returns the models the service offers. The key is sent when
// one is available but is not required.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	key, err := c.apiKey(ctx)
	if err != nil && !errors.Is(err, ErrNoCredential) {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/models", key, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, req, "list models")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var models modelsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&models); err != nil {
		return nil, fmt.Errorf("failed to decode models: %w", err)
	}
	return models.Data, nil
}

// HasModel reports whether id is among the listed models.
func HasModel(models []ModelInfo, id string) bool {
	for _, m := range models {
		if strings.EqualFold(m.ID, id) {
			return true
		}
	}
	return false
}

// IsAvailable checks if the service is reachable.
func (c *Client) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.ListModels(ctx)
	return err == nil
}
