package telemetry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/mattermost/msteams-bot-testkit/server/botadapter"
	"github.com/mattermost/msteams-bot-testkit/server/schema"
)

const (
	EventMessageReceived = "BotMessageReceived"
	EventMessageSend     = "BotMessageSend"
	EventMessageUpdate   = "BotMessageUpdate"
	EventMessageDelete   = "BotMessageDelete"
)

// LoggerMiddleware logs the traffic of every turn: the incoming activity and, through
// turn context hooks, whatever the bot sends, updates or deletes.
type LoggerMiddleware struct {
	logger                 logrus.FieldLogger
	logPersonalInformation bool
	now                    func() time.Time
}

// NewLoggerMiddleware creates the middleware. Message text and user names are only
// logged when logPersonalInformation is set.
func NewLoggerMiddleware(logger logrus.FieldLogger, logPersonalInformation bool) *LoggerMiddleware {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &LoggerMiddleware{
		logger:                 logger,
		logPersonalInformation: logPersonalInformation,
		now:                    time.Now,
	}
}

func (m *LoggerMiddleware) LogPersonalInformation() bool {
	return m.logPersonalInformation
}

func (m *LoggerMiddleware) OnTurn(ctx context.Context, tc *botadapter.TurnContext, next botadapter.NextFunc) error {
	logger := m.logger.WithFields(correlationFields(ctx))

	if tc.Activity != nil {
		logger.WithFields(m.activityFields(tc.Activity, true)).WithField("event", EventMessageReceived).Info("Received activity")
	}

	tc.OnSendActivities(func(ctx context.Context, tc *botadapter.TurnContext, activities []*schema.Activity, next func(ctx context.Context) ([]*schema.ResourceResponse, error)) ([]*schema.ResourceResponse, error) {
		responses, err := next(ctx)
		if err != nil {
			return responses, err
		}
		for _, activity := range activities {
			logger.WithFields(m.activityFields(activity, false)).WithField("event", EventMessageSend).Info("Sent activity")
		}
		return responses, nil
	})

	tc.OnUpdateActivity(func(ctx context.Context, tc *botadapter.TurnContext, activity *schema.Activity, next func(ctx context.Context) error) error {
		if err := next(ctx); err != nil {
			return err
		}
		logger.WithFields(m.activityFields(activity, false)).WithField("event", EventMessageUpdate).Info("Updated activity")
		return nil
	})

	tc.OnDeleteActivity(func(ctx context.Context, tc *botadapter.TurnContext, ref schema.ConversationReference, next func(ctx context.Context) error) error {
		if err := next(ctx); err != nil {
			return err
		}
		fields := logrus.Fields{
			"event":       EventMessageDelete,
			"activity_id": ref.ActivityID,
			"channel_id":  ref.ChannelID,
		}
		if ref.Conversation != nil {
			fields["conversation_id"] = ref.Conversation.ID
		}
		logger.WithFields(fields).Info("Deleted activity")
		return nil
	})

	start := m.now()
	err := next(ctx)
	elapsed := m.now().Sub(start)

	if err != nil {
		logger.WithError(err).WithField("elapsed", elapsed).Warn("Turn failed")
		return err
	}

	logger.WithFields(logrus.Fields{
		"elapsed":   elapsed,
		"responded": tc.Responded(),
	}).Debug("Turn completed")

	return nil
}

func (m *LoggerMiddleware) activityFields(activity *schema.Activity, incoming bool) logrus.Fields {
	fields := logrus.Fields{
		"activity_id":   activity.ID,
		"activity_type": activity.Type,
		"channel_id":    activity.ChannelID,
	}
	if activity.ReplyToID != "" {
		fields["reply_to_id"] = activity.ReplyToID
	}
	if activity.Conversation != nil {
		fields["conversation_id"] = activity.Conversation.ID
	}
	if activity.Locale != "" {
		fields["locale"] = activity.Locale
	}

	if incoming && activity.From != nil {
		fields["from_id"] = activity.From.ID
	}
	if !incoming && activity.Recipient != nil {
		fields["recipient_id"] = activity.Recipient.ID
	}

	if m.logPersonalInformation {
		if activity.Text != "" {
			fields["text"] = activity.Text
		}
		if incoming && activity.From != nil && activity.From.Name != "" {
			fields["from_name"] = activity.From.Name
		}
		if !incoming && activity.Recipient != nil && activity.Recipient.Name != "" {
			fields["recipient_name"] = activity.Recipient.Name
		}
	}

	return fields
}

func correlationFields(ctx context.Context) logrus.Fields {
	spanContext := trace.SpanContextFromContext(ctx)
	if !spanContext.IsValid() {
		return logrus.Fields{}
	}

	return logrus.Fields{
		"trace_id": spanContext.TraceID().String(),
		"span_id":  spanContext.SpanID().String(),
	}
}
