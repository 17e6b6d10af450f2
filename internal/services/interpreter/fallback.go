package interpreter

import (
	"context"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/domain/service"
	"RiskLens/pkg/logger"
)

// Fallback tries primary and answers from secondary when it fails.
type Fallback struct {
	primary   service.Interpreter
	secondary service.Interpreter
	l         *logger.Logger
}

func NewFallback(primary, secondary service.Interpreter, l *logger.Logger) *Fallback {
	if l == nil {
		l = logger.NewNop()
	}
	return &Fallback{primary: primary, secondary: secondary, l: l}
}

func (f *Fallback) Interpret(ctx context.Context, in models.InterpretationInput) (models.Interpretation, error) {
	out, err := f.primary.Interpret(ctx, in)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return models.Interpretation{}, ctx.Err()
	}
	f.l.Info("interpreter falling back to rules",
		logger.String("symbol", in.Symbol),
		logger.Error(err),
	)
	return f.secondary.Interpret(ctx, in)
}
