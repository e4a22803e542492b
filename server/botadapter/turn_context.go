// Copyright (c) 2023-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package botadapter

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mattermost/msteams-bot-testkit/server/schema"
)

// SendActivitiesHandler intercepts outgoing activities. Handlers run in registration
// order and must call next to deliver the activities.
type SendActivitiesHandler func(ctx context.Context, tc *TurnContext, activities []*schema.Activity, next func(ctx context.Context) ([]*schema.ResourceResponse, error)) ([]*schema.ResourceResponse, error)

// UpdateActivityHandler intercepts activity updates.
type UpdateActivityHandler func(ctx context.Context, tc *TurnContext, activity *schema.Activity, next func(ctx context.Context) error) error

// DeleteActivityHandler intercepts activity deletions.
type DeleteActivityHandler func(ctx context.Context, tc *TurnContext, ref schema.ConversationReference, next func(ctx context.Context) error) error

// TurnContext carries the state of a single turn: the incoming activity, the adapter
// that received it and anything the middleware stashes along the way.
type TurnContext struct {
	Activity *schema.Activity
	Adapter  Adapter

	responded bool
	state     map[string]any

	sendHandlers   []SendActivitiesHandler
	updateHandlers []UpdateActivityHandler
	deleteHandlers []DeleteActivityHandler
}

func NewTurnContext(adapter Adapter, activity *schema.Activity) (*TurnContext, error) {
	if adapter == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "adapter is required")
	}
	if activity == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "activity is required")
	}

	return &TurnContext{
		Activity: activity,
		Adapter:  adapter,
		state:    map[string]any{},
	}, nil
}

// Responded reports whether the bot sent anything other than a trace during the turn.
func (tc *TurnContext) Responded() bool {
	return tc.responded
}

func (tc *TurnContext) Set(key string, value any) {
	tc.state[key] = value
}

func (tc *TurnContext) Get(key string) (any, bool) {
	value, ok := tc.state[key]
	return value, ok
}

func (tc *TurnContext) OnSendActivities(handler SendActivitiesHandler) *TurnContext {
	tc.sendHandlers = append(tc.sendHandlers, handler)
	return tc
}

func (tc *TurnContext) OnUpdateActivity(handler UpdateActivityHandler) *TurnContext {
	tc.updateHandlers = append(tc.updateHandlers, handler)
	return tc
}

func (tc *TurnContext) OnDeleteActivity(handler DeleteActivityHandler) *TurnContext {
	tc.deleteHandlers = append(tc.deleteHandlers, handler)
	return tc
}

// SendText sends a plain text message reply.
func (tc *TurnContext) SendText(ctx context.Context, text string) (*schema.ResourceResponse, error) {
	return tc.SendActivity(ctx, &schema.Activity{
		Type: schema.ActivityTypeMessage,
		Text: text,
	})
}

func (tc *TurnContext) SendActivity(ctx context.Context, activity *schema.Activity) (*schema.ResourceResponse, error) {
	responses, err := tc.SendActivities(ctx, []*schema.Activity{activity})
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return nil, nil
	}
	return responses[0], nil
}

// SendActivities addresses each activity to the conversation of the incoming activity and
// hands the batch to the registered send handlers and then the adapter.
func (tc *TurnContext) SendActivities(ctx context.Context, activities []*schema.Activity) ([]*schema.ResourceResponse, error) {
	if len(activities) == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "at least one activity is required")
	}

	ref := schema.GetConversationReference(tc.Activity)
	outgoing := make([]*schema.Activity, 0, len(activities))
	for _, activity := range activities {
		if activity == nil {
			return nil, errors.Wrap(ErrInvalidArgument, "activity must not be nil")
		}
		out := activity.Clone()
		if out.Type == "" {
			out.Type = schema.ActivityTypeMessage
		}
		schema.ApplyConversationReference(out, ref, false)
		outgoing = append(outgoing, out)
	}

	var dispatch func(ctx context.Context, index int) ([]*schema.ResourceResponse, error)
	dispatch = func(ctx context.Context, index int) ([]*schema.ResourceResponse, error) {
		if index < len(tc.sendHandlers) {
			return tc.sendHandlers[index](ctx, tc, outgoing, func(ctx context.Context) ([]*schema.ResourceResponse, error) {
				return dispatch(ctx, index+1)
			})
		}

		responses, err := tc.Adapter.SendActivities(ctx, tc, outgoing)
		if err != nil {
			return nil, err
		}
		for _, activity := range outgoing {
			if activity.Type != schema.ActivityTypeTrace {
				tc.responded = true
				break
			}
		}
		return responses, nil
	}

	return dispatch(ctx, 0)
}

func (tc *TurnContext) UpdateActivity(ctx context.Context, activity *schema.Activity) error {
	if activity == nil {
		return errors.Wrap(ErrInvalidArgument, "activity is required")
	}

	ref := schema.GetConversationReference(tc.Activity)
	updated := activity.Clone()
	schema.ApplyConversationReference(updated, ref, false)

	var dispatch func(ctx context.Context, index int) error
	dispatch = func(ctx context.Context, index int) error {
		if index < len(tc.updateHandlers) {
			return tc.updateHandlers[index](ctx, tc, updated, func(ctx context.Context) error {
				return dispatch(ctx, index+1)
			})
		}
		return tc.Adapter.UpdateActivity(ctx, tc, updated)
	}

	return dispatch(ctx, 0)
}

// DeleteActivity removes a previously sent activity from the conversation of the turn.
func (tc *TurnContext) DeleteActivity(ctx context.Context, activityID string) error {
	ref := schema.GetConversationReference(tc.Activity)
	ref.ActivityID = activityID

	var dispatch func(ctx context.Context, index int) error
	dispatch = func(ctx context.Context, index int) error {
		if index < len(tc.deleteHandlers) {
			return tc.deleteHandlers[index](ctx, tc, ref, func(ctx context.Context) error {
				return dispatch(ctx, index+1)
			})
		}
		return tc.Adapter.DeleteActivity(ctx, tc, ref)
	}

	return dispatch(ctx, 0)
}
