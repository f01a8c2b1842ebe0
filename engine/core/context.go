package core

import (
	"context"
	"fmt"
)

// GenerationIDKey is the context key carrying the current run's generation id.
type GenerationIDKey struct{}

// WithGenerationID attaches a run's generation id to ctx.
func WithGenerationID(ctx context.Context, generationID string) context.Context {
	return context.WithValue(ctx, GenerationIDKey{}, generationID)
}

// GetGenerationID extracts the generation id stashed by WithGenerationID.
func GetGenerationID(ctx context.Context) (string, error) {
	generationID, ok := ctx.Value(GenerationIDKey{}).(string)
	if !ok || generationID == "" {
		return "", fmt.Errorf("generation id not found in context")
	}
	return generationID, nil
}
