// Copyright (c) 2023-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package botadapter

import (
	"context"

	"github.com/mattermost/msteams-bot-testkit/server/schema"
)

// BotCallback is the bot's turn logic, invoked once per inbound activity after the
// middleware pipeline.
type BotCallback func(ctx context.Context, tc *TurnContext) error

// Adapter connects a bot to a channel. The turn context calls back into it to deliver
// outgoing traffic.
type Adapter interface {
	SendActivities(ctx context.Context, tc *TurnContext, activities []*schema.Activity) ([]*schema.ResourceResponse, error)
	UpdateActivity(ctx context.Context, tc *TurnContext, activity *schema.Activity) error
	DeleteActivity(ctx context.Context, tc *TurnContext, ref schema.ConversationReference) error
	ContinueConversation(ctx context.Context, ref schema.ConversationReference, callback BotCallback) error
}

// UserTokenProvider is implemented by adapters that can resolve OAuth tokens for the
// user of the current turn.
type UserTokenProvider interface {
	GetUserToken(ctx context.Context, tc *TurnContext, connectionName, magicCode string) (*schema.TokenResponse, error)
	SignOutUser(ctx context.Context, tc *TurnContext, connectionName string) error
	GetSignInLink(ctx context.Context, tc *TurnContext, connectionName string) (string, error)
	GetTokenStatus(ctx context.Context, tc *TurnContext, userID, includeFilter string) ([]*schema.TokenStatus, error)
}
