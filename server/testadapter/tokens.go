package testadapter

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/mattermost/msteams-bot-testkit/server/botadapter"
	"github.com/mattermost/msteams-bot-testkit/server/metrics"
	"github.com/mattermost/msteams-bot-testkit/server/schema"
)

const signInLinkBase = "https://fake.com/oauthsignin"

// tokenKey identifies a user token. The token value is not part of it so a
// token can be replaced in place.
type tokenKey struct {
	ConnectionName string
	ChannelID      string
	UserID         string
}

type userToken struct {
	key   tokenKey
	token *oauth2.Token
}

// magicCode is a token waiting for the user to confirm the sign-in with a code.
type magicCode struct {
	key       tokenKey
	token     *oauth2.Token
	magicCode string
}

// AddUserToken seeds the fake identity provider. Without a magic code the token is
// immediately available; with one it stays pending until GetUserToken presents the
// matching code.
func (a *TestAdapter) AddUserToken(connectionName, channelID, userID, token, code string) {
	key := tokenKey{
		ConnectionName: connectionName,
		ChannelID:      channelID,
		UserID:         userID,
	}
	value := &oauth2.Token{AccessToken: token}

	a.mu.Lock()
	defer a.mu.Unlock()

	if code == "" {
		a.storeTokenLocked(key, value)
		return
	}

	a.magicCodes = append(a.magicCodes, &magicCode{
		key:       key,
		token:     value,
		magicCode: code,
	})
}

func (a *TestAdapter) storeTokenLocked(key tokenKey, token *oauth2.Token) {
	for _, existing := range a.userTokens {
		if existing.key == key {
			existing.token = token
			return
		}
	}
	a.userTokens = append(a.userTokens, &userToken{key: key, token: token})
}

func turnTokenKey(tc *botadapter.TurnContext, connectionName string) (tokenKey, error) {
	if tc == nil || tc.Activity == nil {
		return tokenKey{}, errors.Wrap(botadapter.ErrInvalidArgument, "turn context is required")
	}
	if tc.Activity.From == nil || tc.Activity.From.ID == "" {
		return tokenKey{}, errors.Wrap(botadapter.ErrInvalidArgument, "turn activity has no sender")
	}

	return tokenKey{
		ConnectionName: connectionName,
		ChannelID:      tc.Activity.ChannelID,
		UserID:         tc.Activity.From.ID,
	}, nil
}

// GetUserToken returns the confirmed token for the turn's user on connectionName, or nil
// when there is none. A matching magic code first promotes the pending token.
func (a *TestAdapter) GetUserToken(_ context.Context, tc *botadapter.TurnContext, connectionName, code string) (*schema.TokenResponse, error) {
	key, err := turnTokenKey(tc, connectionName)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if code != "" {
		for i, pending := range a.magicCodes {
			if pending.key == key && pending.magicCode == code {
				a.storeTokenLocked(pending.key, pending.token)
				a.magicCodes = append(a.magicCodes[:i], a.magicCodes[i+1:]...)
				a.metrics.ObserveTokenLookup(metrics.TokenLookupMagicCodeUsed)
				break
			}
		}
	}

	for _, stored := range a.userTokens {
		if stored.key == key {
			a.metrics.ObserveTokenLookup(metrics.TokenLookupFound)
			return &schema.TokenResponse{
				ChannelID:      key.ChannelID,
				ConnectionName: key.ConnectionName,
				Token:          stored.token.AccessToken,
			}, nil
		}
	}

	a.metrics.ObserveTokenLookup(metrics.TokenLookupNotFound)
	return nil, nil
}

// SignOutUser drops the confirmed tokens of the turn's user. An empty connectionName
// signs the user out of every connection.
func (a *TestAdapter) SignOutUser(_ context.Context, tc *botadapter.TurnContext, connectionName string) error {
	key, err := turnTokenKey(tc, connectionName)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.userTokens[:0]
	removed := 0
	for _, stored := range a.userTokens {
		matches := stored.key.ChannelID == key.ChannelID &&
			stored.key.UserID == key.UserID &&
			(connectionName == "" || stored.key.ConnectionName == connectionName)
		if matches {
			removed++
			continue
		}
		kept = append(kept, stored)
	}
	for i := len(kept); i < len(a.userTokens); i++ {
		a.userTokens[i] = nil
	}
	a.userTokens = kept

	a.metrics.IncrementSignOuts()
	a.logger.WithFields(logrus.Fields{
		"user_id":         key.UserID,
		"connection_name": connectionName,
		"removed":         removed,
	}).Debug("Signed out user")

	return nil
}

// GetSignInLink returns a synthetic sign-in URL for the turn's user. No provider is
// contacted.
func (a *TestAdapter) GetSignInLink(_ context.Context, tc *botadapter.TurnContext, connectionName string) (string, error) {
	key, err := turnTokenKey(tc, connectionName)
	if err != nil {
		return "", err
	}

	return strings.Join([]string{
		signInLinkBase,
		url.PathEscape(key.ConnectionName),
		url.PathEscape(key.ChannelID),
		url.PathEscape(key.UserID),
	}, "/"), nil
}

// GetTokenStatus lists the connections userID holds a confirmed token for on the turn's
// channel. includeFilter is an optional comma separated list of connection names. An
// empty userID falls back to the turn's sender.
func (a *TestAdapter) GetTokenStatus(_ context.Context, tc *botadapter.TurnContext, userID, includeFilter string) ([]*schema.TokenStatus, error) {
	key, err := turnTokenKey(tc, "")
	if err != nil {
		return nil, err
	}
	if userID != "" {
		key.UserID = userID
	}

	var filter map[string]bool
	if includeFilter = strings.TrimSpace(includeFilter); includeFilter != "" {
		filter = map[string]bool{}
		for _, name := range strings.Split(includeFilter, ",") {
			filter[strings.TrimSpace(name)] = true
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	statuses := []*schema.TokenStatus{}
	for _, stored := range a.userTokens {
		if stored.key.ChannelID != key.ChannelID || stored.key.UserID != key.UserID {
			continue
		}
		if filter != nil && !filter[stored.key.ConnectionName] {
			continue
		}
		statuses = append(statuses, &schema.TokenStatus{
			ChannelID:      stored.key.ChannelID,
			ConnectionName: stored.key.ConnectionName,
			HasToken:       true,
		})
	}

	return statuses, nil
}
