// Copyright (c) 2023-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package testadapter simulates a channel connector so bot logic can be exercised in
// unit tests without any network transport. Inbound activities are normalized and run
// through the adapter's middleware pipeline; everything the bot sends back lands in an
// in-memory reply queue that the test drains with GetNextReply.
package testadapter

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mattermost/msteams-bot-testkit/server/botadapter"
	"github.com/mattermost/msteams-bot-testkit/server/metrics"
	"github.com/mattermost/msteams-bot-testkit/server/schema"
)

const defaultDelay = time.Second

// Metrics is the subset of metrics.Metrics the adapter reports to.
type Metrics interface {
	ObserveTurnDuration(activityType string, success bool, elapsed float64)
	ObserveReceivedActivity(activityType string)
	ObserveSentActivity(activityType string)
	ObserveDiscardedActivity(activityType, discardedReason string)
	ObserveTokenLookup(result string)
	IncrementSignOuts()
}

type Option func(*TestAdapter)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(a *TestAdapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(a *TestAdapter) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithClock overrides the source of default timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *TestAdapter) {
		if now != nil {
			a.now = now
		}
	}
}

// TestAdapter is a lenient channel double. It is meant to be driven sequentially by a
// single test; the internal lock only protects the queue and token sets from a reader
// on another goroutine.
type TestAdapter struct {
	reference  schema.ConversationReference
	middleware *botadapter.MiddlewareSet

	logger  logrus.FieldLogger
	metrics Metrics
	now     func() time.Time

	mu                  sync.Mutex
	nextID              int
	sendTraceActivities bool
	queue               []*schema.Activity
	userTokens          []*userToken
	magicCodes          []*magicCode
}

var _ botadapter.Adapter = (*TestAdapter)(nil)
var _ botadapter.UserTokenProvider = (*TestAdapter)(nil)

// New creates an adapter for the conversation described by cfg. A nil cfg uses
// DefaultConfig.
func New(cfg *Config, opts ...Option) (*TestAdapter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.Clone()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid test adapter configuration")
	}

	a := NewWithReference(cfg.ConversationReference(), opts...)
	a.sendTraceActivities = cfg.SendTraceActivities

	return a, nil
}

// NewWithReference creates an adapter for an already built conversation reference.
func NewWithReference(ref schema.ConversationReference, opts ...Option) *TestAdapter {
	a := &TestAdapter{
		reference:  ref.Clone(),
		middleware: botadapter.NewMiddlewareSet(),
		logger:     logrus.StandardLogger(),
		metrics:    (*metrics.Metrics)(nil),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.logger = a.logger.WithFields(logrus.Fields{
		"channel_id":      a.reference.ChannelID,
		"conversation_id": conversationID(a.reference),
	})

	return a
}

// Use appends middleware to the pipeline every processed activity runs through.
func (a *TestAdapter) Use(middleware ...botadapter.Middleware) *TestAdapter {
	a.middleware.Use(middleware...)
	return a
}

// Conversation returns a copy of the adapter's conversation reference.
func (a *TestAdapter) Conversation() schema.ConversationReference {
	return a.reference.Clone()
}

func (a *TestAdapter) Locale() string {
	return a.reference.Locale
}

func (a *TestAdapter) SendTraceActivities() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sendTraceActivities
}

func (a *TestAdapter) SetSendTraceActivities(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sendTraceActivities = enabled
}

func (a *TestAdapter) takeNextID() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := strconv.Itoa(a.nextID)
	a.nextID++
	return id
}

// ProcessActivity normalizes a copy of activity as if the channel had received it from
// the user, then runs it through the middleware pipeline and callback. Errors raised by
// middleware or the callback are returned as is.
func (a *TestAdapter) ProcessActivity(ctx context.Context, activity *schema.Activity, callback botadapter.BotCallback) error {
	if activity == nil {
		return errors.Wrap(botadapter.ErrInvalidArgument, "activity is required")
	}

	request := activity.Clone()
	if request.Type == "" {
		request.Type = schema.ActivityTypeMessage
	}
	request.ChannelID = a.reference.ChannelID
	if request.From == nil || request.From.ID == schema.UnknownAccountID || request.From.Role == schema.RoleBot {
		request.From = a.reference.Clone().User
	}
	ref := a.reference.Clone()
	request.Recipient = ref.Bot
	request.Conversation = ref.Conversation
	request.ServiceURL = ref.ServiceURL
	request.ID = a.takeNextID()
	if request.Timestamp.IsZero() {
		request.Timestamp = a.now().UTC()
	}
	if request.Locale == "" {
		request.Locale = a.reference.Locale
	}

	tc, err := botadapter.NewTurnContext(a, request)
	if err != nil {
		return err
	}

	a.logger.WithFields(logrus.Fields{
		"activity_id":   request.ID,
		"activity_type": request.Type,
	}).Debug("Processing activity")
	a.metrics.ObserveReceivedActivity(string(request.Type))

	start := a.now()
	err = a.middleware.ReceiveActivityWithStatus(ctx, tc, callback)
	a.metrics.ObserveTurnDuration(string(request.Type), err == nil, a.now().Sub(start).Seconds())

	return err
}

// SendActivities queues the bot's outgoing activities. Delay activities pause the batch
// and trace activities are only queued when trace forwarding is enabled. Every input
// activity gets a response carrying its id, whether it was queued or not.
func (a *TestAdapter) SendActivities(ctx context.Context, tc *botadapter.TurnContext, activities []*schema.Activity) ([]*schema.ResourceResponse, error) {
	if tc == nil {
		return nil, errors.Wrap(botadapter.ErrInvalidArgument, "turn context is required")
	}
	if len(activities) == 0 {
		return nil, errors.Wrap(botadapter.ErrInvalidArgument, "expecting one or more activities, but the array was empty")
	}
	for i, activity := range activities {
		if activity == nil {
			return nil, errors.Wrapf(botadapter.ErrInvalidArgument, "activity at position %d is nil", i)
		}
	}

	responses := make([]*schema.ResourceResponse, 0, len(activities))
	for _, activity := range activities {
		if activity.ID == "" {
			activity.ID = uuid.NewString()
		}
		if activity.Timestamp.IsZero() {
			activity.Timestamp = a.now().UTC()
		}

		switch activity.Type {
		case schema.ActivityTypeDelay:
			a.metrics.ObserveDiscardedActivity(string(activity.Type), metrics.DiscardReasonDelay)
			if err := sleep(ctx, delayDuration(activity.Value)); err != nil {
				return nil, err
			}
		case schema.ActivityTypeTrace:
			if a.SendTraceActivities() {
				a.enqueue(activity)
			} else {
				a.metrics.ObserveDiscardedActivity(string(activity.Type), metrics.DiscardReasonTraceDisabled)
			}
		default:
			a.enqueue(activity)
		}

		responses = append(responses, &schema.ResourceResponse{ID: activity.ID})
	}

	return responses, nil
}

func (a *TestAdapter) enqueue(activity *schema.Activity) {
	a.mu.Lock()
	a.queue = append(a.queue, activity)
	a.mu.Unlock()

	a.metrics.ObserveSentActivity(string(activity.Type))
	a.logger.WithFields(logrus.Fields{
		"activity_id":   activity.ID,
		"activity_type": activity.Type,
	}).Debug("Queued reply")
}

// UpdateActivity replaces the first queued reply with the same id. Unknown ids are ignored.
func (a *TestAdapter) UpdateActivity(_ context.Context, _ *botadapter.TurnContext, activity *schema.Activity) error {
	if activity == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i, queued := range a.queue {
		if queued.ID == activity.ID {
			a.queue[i] = activity
			return nil
		}
	}

	return nil
}

// DeleteActivity removes the first queued reply whose id matches ref.ActivityID. Unknown
// ids are ignored.
func (a *TestAdapter) DeleteActivity(_ context.Context, _ *botadapter.TurnContext, ref schema.ConversationReference) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, queued := range a.queue {
		if queued.ID == ref.ActivityID {
			a.queue = append(a.queue[:i], a.queue[i+1:]...)
			return nil
		}
	}

	return nil
}

// ContinueConversation is not supported: the adapter does not model proactive messages.
func (a *TestAdapter) ContinueConversation(_ context.Context, _ schema.ConversationReference, _ botadapter.BotCallback) error {
	return errors.Wrap(botadapter.ErrNotImplemented, "continue conversation is not supported by the test adapter")
}

// GetNextReply dequeues the oldest reply. It never blocks; ok is false when the queue
// is empty.
func (a *TestAdapter) GetNextReply() (*schema.Activity, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.queue) == 0 {
		return nil, false
	}

	next := a.queue[0]
	a.queue[0] = nil
	a.queue = a.queue[1:]
	return next, true
}

func (a *TestAdapter) ActiveQueueLength() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

// MakeActivity creates a message from the configured user to the bot. The activity is
// neither queued nor processed.
func (a *TestAdapter) MakeActivity(text string) *schema.Activity {
	ref := a.reference.Clone()
	return &schema.Activity{
		Type:         schema.ActivityTypeMessage,
		ID:           a.takeNextID(),
		ChannelID:    ref.ChannelID,
		ServiceURL:   ref.ServiceURL,
		From:         ref.User,
		Recipient:    ref.Bot,
		Conversation: ref.Conversation,
		Locale:       ref.Locale,
		Text:         text,
	}
}

// SendTextToBot processes a text message from the user.
func (a *TestAdapter) SendTextToBot(ctx context.Context, text string, callback botadapter.BotCallback) error {
	return a.ProcessActivity(ctx, a.MakeActivity(text), callback)
}

func conversationID(ref schema.ConversationReference) string {
	if ref.Conversation == nil {
		return ""
	}
	return ref.Conversation.ID
}

// delayDuration reads a delay activity's value as milliseconds.
func delayDuration(value any) time.Duration {
	var ms float64
	switch v := value.(type) {
	case int:
		ms = float64(v)
	case int32:
		ms = float64(v)
	case int64:
		ms = float64(v)
	case float32:
		ms = float64(v)
	case float64:
		ms = v
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return defaultDelay
		}
		ms = parsed
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return defaultDelay
		}
		ms = parsed
	default:
		return defaultDelay
	}

	if ms <= 0 {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
