package service

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/go-go-golems/chat-relay/pkg/helpers"
	"github.com/go-go-golems/chat-relay/pkg/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// LoggingInterceptor assigns a call id to every inbound stream and logs its
// outcome.
type LoggingInterceptor struct{}

func NewLoggingInterceptor() *LoggingInterceptor {
	return &LoggingInterceptor{}
}

// WrapUnary implements connect.Interceptor for unary RPCs
func (i *LoggingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return next
}

// WrapStreamingClient implements connect.Interceptor for client streaming
func (i *LoggingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor for server streaming
func (i *LoggingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		callID := conn.RequestHeader().Get(CallIDHeader)
		if callID == "" {
			callID = uuid.NewString()
		}
		conn.ResponseHeader().Set(CallIDHeader, callID)
		ctx = helpers.ContextWithCorrelationID(ctx, callID)

		procedure := conn.Spec().Procedure
		logger := log.With().
			Str("component", "service").
			Str("call_id", callID).
			Str("procedure", procedure).
			Str("protocol", conn.Peer().Protocol).
			Logger()
		logger.Info().Str("peer", conn.Peer().Addr).Msg("Stream started")

		start := time.Now()
		err := next(ctx, conn)
		elapsed := time.Since(start)

		if err != nil {
			logger.Warn().
				Err(err).
				Str("code", connect.CodeOf(err).String()).
				Dur("elapsed", elapsed).
				Msg("Stream ended with error")
			return err
		}
		logger.Info().Dur("elapsed", elapsed).Msg("Stream ended")
		return nil
	}
}

var _ connect.Interceptor = (*LoggingInterceptor)(nil)

// StreamLimiter bounds the number of streams relayed at the same time. Extra
// streams wait for a slot until their context ends.
type StreamLimiter struct {
	sem *semaphore.Weighted
	max int64
}

func NewStreamLimiter(max int64) *StreamLimiter {
	if max <= 0 {
		max = 1
	}
	return &StreamLimiter{
		sem: semaphore.NewWeighted(max),
		max: max,
	}
}

// WrapUnary implements connect.Interceptor for unary RPCs
func (l *StreamLimiter) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return next
}

// WrapStreamingClient implements connect.Interceptor for client streaming
func (l *StreamLimiter) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor for server streaming
func (l *StreamLimiter) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			metrics.RejectedStreamsTotal.WithLabelValues(conn.Spec().Procedure, "canceled").Inc()
			return ToConnectError(err)
		}
		defer l.sem.Release(1)

		metrics.ActiveStreams.Inc()
		defer metrics.ActiveStreams.Dec()

		return next(ctx, conn)
	}
}

var _ connect.Interceptor = (*StreamLimiter)(nil)
