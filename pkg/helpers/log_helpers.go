package helpers

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/lithammer/shortuuid/v3"
	"github.com/rs/zerolog"
)

// WatermillZerologAdapter routes watermill's internal logging to zerolog.
// Watermill logs every subscriber and router transition at info, so info is
// demoted to debug.
type WatermillZerologAdapter struct {
	logger zerolog.Logger
}

// NewWatermill tags every line with component=watermill.
func NewWatermill(logger zerolog.Logger) *WatermillZerologAdapter {
	return &WatermillZerologAdapter{
		logger: logger.With().Str("component", "watermill").Logger(),
	}
}

var _ watermill.LoggerAdapter = (*WatermillZerologAdapter)(nil)

func (w *WatermillZerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error().Err(err).Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillZerologAdapter) Info(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillZerologAdapter) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillZerologAdapter) Trace(msg string, fields watermill.LogFields) {
	w.logger.Trace().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillZerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillZerologAdapter{
		logger: w.logger.With().Fields(map[string]interface{}(fields)).Logger(),
	}
}

type callIDKey struct{}

// ContextWithCorrelationID stores the call id assigned at the service edge.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDKey{}, id)
}

// CorrelationIDFromContext returns the call id stored in ctx. Calls that
// bypassed the service edge get a fresh id prefixed with "gen_".
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(callIDKey{}).(string); ok && id != "" {
		return id
	}
	return "gen_" + shortuuid.New()
}
