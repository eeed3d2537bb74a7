package ports

import (
	"context"

	"perpScalper/internal/domain"
)

// SignalEvaluator maps an indicator-annotated candle series to trading decisions.
type SignalEvaluator interface {
	// Entry returns the entry decision for the most recent frame.
	Entry(ctx context.Context, symbol string, frames []domain.IndicatorFrame) domain.Signal

	// Exit reports whether a position held in the given direction should be closed now.
	Exit(ctx context.Context, symbol string, frames []domain.IndicatorFrame, side domain.Side) (bool, domain.CloseReason)
}
