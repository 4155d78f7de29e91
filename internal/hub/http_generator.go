package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/botique-hub/internal/models"
)

// HTTPGenerator fulfills jobs by calling an external generation service.
// The service receives the skill name and the job input and returns the
// output document as its JSON response body.
type HTTPGenerator struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPGenerator creates a generator backed by an HTTP generation service
func NewHTTPGenerator(endpoint string) *HTTPGenerator {
	return &HTTPGenerator{
		endpoint:   endpoint,
		httpClient: &http.Client{},
	}
}

type generateRequest struct {
	Skill       string          `json:"skill"`
	Description string          `json:"description,omitempty"`
	Input       json.RawMessage `json:"input"`
}

// Generate implements Generator. The caller's context bounds the request.
func (g *HTTPGenerator) Generate(ctx context.Context, skill *models.Skill, input json.RawMessage) (json.RawMessage, error) {
	body, err := json.Marshal(&generateRequest{
		Skill:       skill.Name,
		Description: skill.Description,
		Input:       input,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generation service returned status %d", resp.StatusCode)
	}

	output, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read generation response: %w", err)
	}
	if !json.Valid(output) {
		return nil, fmt.Errorf("generation service returned invalid JSON")
	}

	return output, nil
}
