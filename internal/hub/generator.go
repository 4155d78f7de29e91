package hub

import (
	"context"
	"encoding/json"

	"github.com/botique-hub/internal/models"
)

// Generator is the external generation capability used for hub-side
// fulfillment when an agent has no webhook endpoint. The hub treats it as
// an opaque collaborator.
type Generator interface {
	Generate(ctx context.Context, skill *models.Skill, input json.RawMessage) (json.RawMessage, error)
}

// GeneratorFunc adapts a function to the Generator interface
type GeneratorFunc func(ctx context.Context, skill *models.Skill, input json.RawMessage) (json.RawMessage, error)

// Generate implements Generator
func (f GeneratorFunc) Generate(ctx context.Context, skill *models.Skill, input json.RawMessage) (json.RawMessage, error) {
	return f(ctx, skill, input)
}
