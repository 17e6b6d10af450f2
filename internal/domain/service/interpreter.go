package service

import (
	"context"

	"RiskLens/internal/domain/models"
)

// Interpreter turns a risk analysis into a natural-language reading.
type Interpreter interface {
	Interpret(ctx context.Context, in models.InterpretationInput) (models.Interpretation, error)
}
