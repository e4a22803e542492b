// Copyright (c) 2023-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package schema

import (
	"strings"
)

// ConversationReference identifies a conversation independently of any single activity.
type ConversationReference struct {
	ActivityID   string               `json:"activityId,omitempty"`
	User         *ChannelAccount      `json:"user,omitempty"`
	Bot          *ChannelAccount      `json:"bot,omitempty"`
	Conversation *ConversationAccount `json:"conversation,omitempty"`
	ChannelID    string               `json:"channelId"`
	Locale       string               `json:"locale,omitempty"`
	ServiceURL   string               `json:"serviceUrl"`
}

// Clone returns a deep copy of the reference's account pointers.
func (r ConversationReference) Clone() ConversationReference {
	if r.User != nil {
		user := *r.User
		r.User = &user
	}
	if r.Bot != nil {
		bot := *r.Bot
		r.Bot = &bot
	}
	if r.Conversation != nil {
		conversation := *r.Conversation
		r.Conversation = &conversation
	}
	return r
}

// NewConversationReference builds a reference for a named conversation on the test
// channel. Ids are the lower-cased display names.
func NewConversationReference(name, user, bot string) ConversationReference {
	if user == "" {
		user = "User1"
	}
	if bot == "" {
		bot = "Bot"
	}

	return ConversationReference{
		ChannelID:  "test",
		ServiceURL: "https://test.com",
		Conversation: &ConversationAccount{
			ID:   name,
			Name: name,
		},
		User: &ChannelAccount{
			ID:   strings.ToLower(user),
			Name: user,
			Role: RoleUser,
		},
		Bot: &ChannelAccount{
			ID:   strings.ToLower(bot),
			Name: bot,
			Role: RoleBot,
		},
	}
}

// GetConversationReference extracts the reference of the conversation an incoming
// activity belongs to.
func GetConversationReference(activity *Activity) ConversationReference {
	ref := ConversationReference{
		ActivityID: activity.ID,
		User:       activity.From,
		Bot:        activity.Recipient,
		ChannelID:  activity.ChannelID,
		Locale:     activity.Locale,
		ServiceURL: activity.ServiceURL,
	}
	if activity.Conversation != nil {
		conversation := *activity.Conversation
		ref.Conversation = &conversation
	}

	return ref.Clone()
}

// ApplyConversationReference addresses an activity to the conversation in ref. When
// isIncoming is true the activity is treated as coming from the user, otherwise as a
// reply from the bot to ref.ActivityID.
func ApplyConversationReference(activity *Activity, ref ConversationReference, isIncoming bool) {
	ref = ref.Clone()

	activity.ChannelID = ref.ChannelID
	activity.ServiceURL = ref.ServiceURL
	activity.Conversation = ref.Conversation
	if ref.Locale != "" && activity.Locale == "" {
		activity.Locale = ref.Locale
	}

	if isIncoming {
		activity.From = ref.User
		activity.Recipient = ref.Bot
		if ref.ActivityID != "" {
			activity.ID = ref.ActivityID
		}
		return
	}

	activity.From = ref.Bot
	activity.Recipient = ref.User
	if ref.ActivityID != "" && activity.Type != ActivityTypeConversationUpdate && activity.ReplyToID == "" {
		activity.ReplyToID = ref.ActivityID
	}
}
