package telemetry

import (
	"context"

	"github.com/mattermost/msteams-bot-testkit/server/schema"
)

type activityContextKey struct{}

// ContextWithActivity stashes the incoming activity of a turn in ctx.
func ContextWithActivity(ctx context.Context, activity *schema.Activity) context.Context {
	return context.WithValue(ctx, activityContextKey{}, activity)
}

// ActivityFromContext returns the activity stashed by the initializer middleware, if any.
func ActivityFromContext(ctx context.Context) (*schema.Activity, bool) {
	activity, ok := ctx.Value(activityContextKey{}).(*schema.Activity)
	return activity, ok && activity != nil
}
