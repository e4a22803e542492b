// Copyright (c) 2023-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package schema

import (
	"time"
)

type ActivityType string

const (
	ActivityTypeMessage            ActivityType = "message"
	ActivityTypeTrace              ActivityType = "trace"
	ActivityTypeDelay              ActivityType = "delay"
	ActivityTypeEvent              ActivityType = "event"
	ActivityTypeInvoke             ActivityType = "invoke"
	ActivityTypeTyping             ActivityType = "typing"
	ActivityTypeConversationUpdate ActivityType = "conversationUpdate"
	ActivityTypeEndOfConversation  ActivityType = "endOfConversation"
)

const (
	RoleUser = "user"
	RoleBot  = "bot"

	// UnknownAccountID marks a sender the channel could not resolve.
	UnknownAccountID = "unknown"
)

type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

type ConversationAccount struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	IsGroup bool   `json:"isGroup,omitempty"`
}

type Attachment struct {
	ContentType  string `json:"contentType"`
	ContentURL   string `json:"contentUrl,omitempty"`
	Content      any    `json:"content,omitempty"`
	Name         string `json:"name,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// Activity is a single message or event exchanged between a user and a bot.
type Activity struct {
	Type           ActivityType         `json:"type"`
	ID             string               `json:"id,omitempty"`
	Timestamp      time.Time            `json:"timestamp,omitempty"`
	LocalTimestamp time.Time            `json:"localTimestamp,omitempty"`
	ServiceURL     string               `json:"serviceUrl,omitempty"`
	ChannelID      string               `json:"channelId,omitempty"`
	From           *ChannelAccount      `json:"from,omitempty"`
	Recipient      *ChannelAccount      `json:"recipient,omitempty"`
	Conversation   *ConversationAccount `json:"conversation,omitempty"`
	ReplyToID      string               `json:"replyToId,omitempty"`
	Text           string               `json:"text,omitempty"`
	TextFormat     string               `json:"textFormat,omitempty"`
	Locale         string               `json:"locale,omitempty"`
	Name           string               `json:"name,omitempty"`
	Label          string               `json:"label,omitempty"`
	ValueType      string               `json:"valueType,omitempty"`
	Value          any                  `json:"value,omitempty"`
	Attachments    []Attachment         `json:"attachments,omitempty"`
	ChannelData    map[string]any       `json:"channelData,omitempty"`
}

// Clone returns a copy of the activity that shares no account pointers with the original.
// Value, Attachments and ChannelData are copied shallowly.
func (a *Activity) Clone() *Activity {
	if a == nil {
		return nil
	}

	clone := *a
	if a.From != nil {
		from := *a.From
		clone.From = &from
	}
	if a.Recipient != nil {
		recipient := *a.Recipient
		clone.Recipient = &recipient
	}
	if a.Conversation != nil {
		conversation := *a.Conversation
		clone.Conversation = &conversation
	}
	if a.Attachments != nil {
		clone.Attachments = append([]Attachment(nil), a.Attachments...)
	}

	return &clone
}

// ResourceResponse acknowledges a sent activity.
type ResourceResponse struct {
	ID string `json:"id"`
}

// TokenResponse is returned by a user token provider for a confirmed token.
// Expiration is an ISO 8601 string and may be empty.
type TokenResponse struct {
	ChannelID      string `json:"channelId,omitempty"`
	ConnectionName string `json:"connectionName"`
	Token          string `json:"token"`
	Expiration     string `json:"expiration,omitempty"`
}

// TokenStatus reports whether a user holds a token for a connection.
type TokenStatus struct {
	ChannelID      string `json:"channelId,omitempty"`
	ConnectionName string `json:"connectionName"`
	HasToken       bool   `json:"hasToken"`
}
