// Copyright (c) 2023-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mattermost/msteams-bot-testkit/server/botadapter"
	"github.com/mattermost/msteams-bot-testkit/server/schema"
)

const (
	tracerName   = "github.com/mattermost/msteams-bot-testkit/server/telemetry"
	turnSpanName = "bot.turn"
)

type InitializerOption func(*InitializerMiddleware)

// WithTracer replaces the global tracer, e.g. with one backed by a span recorder.
func WithTracer(tracer trace.Tracer) InitializerOption {
	return func(m *InitializerMiddleware) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// InitializerMiddleware opens the correlation context of a turn and stashes the incoming
// activity in it, so anything downstream can tie its telemetry to the activity. When
// the global TracerProvider is not configured the span is a no-op.
type InitializerMiddleware struct {
	tracer               trace.Tracer
	loggerMiddleware     botadapter.Middleware
	logActivityTelemetry bool
}

// NewInitializerMiddleware creates the middleware. When logActivityTelemetry is true and
// loggerMiddleware is not nil, each turn is delegated to loggerMiddleware instead of
// continuing directly.
func NewInitializerMiddleware(loggerMiddleware botadapter.Middleware, logActivityTelemetry bool, opts ...InitializerOption) *InitializerMiddleware {
	m := &InitializerMiddleware{
		tracer:               otel.Tracer(tracerName),
		loggerMiddleware:     loggerMiddleware,
		logActivityTelemetry: logActivityTelemetry,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *InitializerMiddleware) LogActivityTelemetry() bool {
	return m.logActivityTelemetry
}

func (m *InitializerMiddleware) LoggerMiddleware() botadapter.Middleware {
	return m.loggerMiddleware
}

func (m *InitializerMiddleware) OnTurn(ctx context.Context, tc *botadapter.TurnContext, next botadapter.NextFunc) error {
	ctx, span := m.tracer.Start(ctx, turnSpanName,
		trace.WithAttributes(activityAttributes(tc.Activity)...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	if tc.Activity != nil {
		ctx = ContextWithActivity(ctx, tc.Activity)
	}

	var err error
	if m.logActivityTelemetry && m.loggerMiddleware != nil {
		err = m.loggerMiddleware.OnTurn(ctx, tc, next)
	} else {
		err = next(ctx)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}

func activityAttributes(activity *schema.Activity) []attribute.KeyValue {
	if activity == nil {
		return nil
	}

	attrs := []attribute.KeyValue{
		attribute.String("bot.activity.id", activity.ID),
		attribute.String("bot.activity.type", string(activity.Type)),
		attribute.String("bot.channel.id", activity.ChannelID),
	}
	if activity.Conversation != nil {
		attrs = append(attrs, attribute.String("bot.conversation.id", activity.Conversation.ID))
	}
	if activity.From != nil {
		attrs = append(attrs, attribute.String("bot.from.id", activity.From.ID))
	}
	if activity.Recipient != nil {
		attrs = append(attrs, attribute.String("bot.recipient.id", activity.Recipient.ID))
	}
	if activity.Locale != "" {
		attrs = append(attrs, attribute.String("bot.locale", activity.Locale))
	}

	return attrs
}
