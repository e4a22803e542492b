package testadapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/msteams-bot-testkit/server/botadapter"
	"github.com/mattermost/msteams-bot-testkit/server/metrics"
	"github.com/mattermost/msteams-bot-testkit/server/schema"
)

func newTokenTurn(t *testing.T, adapter *TestAdapter) *botadapter.TurnContext {
	t.Helper()

	tc, err := botadapter.NewTurnContext(adapter, adapter.MakeActivity("sign in"))
	require.NoError(t, err)
	return tc
}

func TestGetUserToken(t *testing.T) {
	ctx := context.Background()

	t.Run("not found when never added", func(t *testing.T) {
		adapter := setupTestAdapter(t)

		token, err := adapter.GetUserToken(ctx, newTokenTurn(t, adapter), "conn", "")
		require.NoError(t, err)
		assert.Nil(t, token)
	})

	t.Run("returns an added token", func(t *testing.T) {
		adapter := setupTestAdapter(t)
		adapter.AddUserToken("conn", "test", "user1", "tok123", "")

		token, err := adapter.GetUserToken(ctx, newTokenTurn(t, adapter), "conn", "")
		require.NoError(t, err)
		require.NotNil(t, token)
		assert.Equal(t, "tok123", token.Token)
		assert.Equal(t, "conn", token.ConnectionName)
		assert.Equal(t, "test", token.ChannelID)
		assert.Empty(t, token.Expiration)
	})

	t.Run("adding again replaces the token", func(t *testing.T) {
		adapter := setupTestAdapter(t)
		adapter.AddUserToken("conn", "test", "user1", "old", "")
		adapter.AddUserToken("conn", "test", "user1", "new", "")

		token, err := adapter.GetUserToken(ctx, newTokenTurn(t, adapter), "conn", "")
		require.NoError(t, err)
		require.NotNil(t, token)
		assert.Equal(t, "new", token.Token)
		assert.Len(t, adapter.userTokens, 1)
	})

	t.Run("does not leak across connections, channels or users", func(t *testing.T) {
		adapter := setupTestAdapter(t)
		adapter.AddUserToken("other-conn", "test", "user1", "a", "")
		adapter.AddUserToken("conn", "other-channel", "user1", "b", "")
		adapter.AddUserToken("conn", "test", "user2", "c", "")

		token, err := adapter.GetUserToken(ctx, newTokenTurn(t, adapter), "conn", "")
		require.NoError(t, err)
		assert.Nil(t, token)
	})

	t.Run("magic code flow", func(t *testing.T) {
		m := metrics.NewMetrics(metrics.InstanceInfo{})
		adapter := setupTestAdapter(t, WithMetrics(m))
		tc := newTokenTurn(t, adapter)
		adapter.AddUserToken("conn", "test", "user1", "tok456", "000000")

		// Pending tokens are not retrievable without the code.
		token, err := adapter.GetUserToken(ctx, tc, "conn", "")
		require.NoError(t, err)
		assert.Nil(t, token)

		token, err = adapter.GetUserToken(ctx, tc, "conn", "999999")
		require.NoError(t, err)
		assert.Nil(t, token)
		assert.Len(t, adapter.magicCodes, 1)

		token, err = adapter.GetUserToken(ctx, tc, "conn", "000000")
		require.NoError(t, err)
		require.NotNil(t, token)
		assert.Equal(t, "tok456", token.Token)
		assert.Empty(t, adapter.magicCodes)

		// Once promoted the token is confirmed and no longer needs the code.
		token, err = adapter.GetUserToken(ctx, tc, "conn", "")
		require.NoError(t, err)
		require.NotNil(t, token)
		assert.Equal(t, "tok456", token.Token)

		assert.Equal(t, 1.0, counterValue(t, m.Registry(), "bot_testkit_tokens_lookup_total", map[string]string{"result": metrics.TokenLookupMagicCodeUsed}))
		assert.Equal(t, 2.0, counterValue(t, m.Registry(), "bot_testkit_tokens_lookup_total", map[string]string{"result": metrics.TokenLookupFound}))
		assert.Equal(t, 2.0, counterValue(t, m.Registry(), "bot_testkit_tokens_lookup_total", map[string]string{"result": metrics.TokenLookupNotFound}))
	})

	t.Run("consumes only the matching magic code", func(t *testing.T) {
		adapter := setupTestAdapter(t)
		tc := newTokenTurn(t, adapter)
		adapter.AddUserToken("conn", "test", "user1", "first", "111111")
		adapter.AddUserToken("other", "test", "user1", "second", "111111")

		token, err := adapter.GetUserToken(ctx, tc, "conn", "111111")
		require.NoError(t, err)
		require.NotNil(t, token)
		assert.Equal(t, "first", token.Token)

		require.Len(t, adapter.magicCodes, 1)
		assert.Equal(t, "other", adapter.magicCodes[0].key.ConnectionName)
	})

	t.Run("requires a turn context with a sender", func(t *testing.T) {
		adapter := setupTestAdapter(t)

		_, err := adapter.GetUserToken(ctx, nil, "conn", "")
		require.ErrorIs(t, err, botadapter.ErrInvalidArgument)

		tc, err := botadapter.NewTurnContext(adapter, &schema.Activity{Type: schema.ActivityTypeMessage})
		require.NoError(t, err)
		_, err = adapter.GetUserToken(ctx, tc, "conn", "")
		require.ErrorIs(t, err, botadapter.ErrInvalidArgument)
	})
}

func TestSignOutUser(t *testing.T) {
	ctx := context.Background()

	seed := func(adapter *TestAdapter) {
		adapter.AddUserToken("conn1", "test", "user1", "a", "")
		adapter.AddUserToken("conn2", "test", "user1", "b", "")
		adapter.AddUserToken("conn1", "test", "user2", "c", "")
		adapter.AddUserToken("conn1", "other", "user1", "d", "")
	}

	t.Run("single connection", func(t *testing.T) {
		adapter := setupTestAdapter(t)
		seed(adapter)
		tc := newTokenTurn(t, adapter)

		require.NoError(t, adapter.SignOutUser(ctx, tc, "conn1"))

		token, err := adapter.GetUserToken(ctx, tc, "conn1", "")
		require.NoError(t, err)
		assert.Nil(t, token)

		token, err = adapter.GetUserToken(ctx, tc, "conn2", "")
		require.NoError(t, err)
		require.NotNil(t, token)
		assert.Equal(t, "b", token.Token)
		assert.Len(t, adapter.userTokens, 3)
	})

	t.Run("all connections", func(t *testing.T) {
		adapter := setupTestAdapter(t)
		seed(adapter)
		tc := newTokenTurn(t, adapter)

		require.NoError(t, adapter.SignOutUser(ctx, tc, ""))

		require.Len(t, adapter.userTokens, 2)
		for _, stored := range adapter.userTokens {
			assert.False(t, stored.key.ChannelID == "test" && stored.key.UserID == "user1")
		}
	})

	t.Run("nothing to remove", func(t *testing.T) {
		adapter := setupTestAdapter(t)

		require.NoError(t, adapter.SignOutUser(ctx, newTokenTurn(t, adapter), "conn1"))
	})

	t.Run("requires a turn context", func(t *testing.T) {
		adapter := setupTestAdapter(t)

		require.ErrorIs(t, adapter.SignOutUser(ctx, nil, ""), botadapter.ErrInvalidArgument)
	})
}

func TestGetSignInLink(t *testing.T) {
	adapter := setupTestAdapter(t)
	tc := newTokenTurn(t, adapter)

	link, err := adapter.GetSignInLink(context.Background(), tc, "conn")
	require.NoError(t, err)
	assert.Equal(t, "https://fake.com/oauthsignin/conn/test/user1", link)

	link, err = adapter.GetSignInLink(context.Background(), tc, "my conn")
	require.NoError(t, err)
	assert.Equal(t, "https://fake.com/oauthsignin/my%20conn/test/user1", link)

	again, err := adapter.GetSignInLink(context.Background(), tc, "my conn")
	require.NoError(t, err)
	assert.Equal(t, link, again)
}

func TestGetTokenStatus(t *testing.T) {
	adapter := setupTestAdapter(t)
	tc := newTokenTurn(t, adapter)
	adapter.AddUserToken("conn1", "test", "user1", "a", "")
	adapter.AddUserToken("conn2", "test", "user1", "b", "")
	adapter.AddUserToken("conn3", "test", "user2", "c", "")
	adapter.AddUserToken("pending", "test", "user1", "d", "123456")

	statuses, err := adapter.GetTokenStatus(context.Background(), tc, "", "")
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "conn1", statuses[0].ConnectionName)
	assert.Equal(t, "conn2", statuses[1].ConnectionName)
	assert.True(t, statuses[0].HasToken)

	statuses, err = adapter.GetTokenStatus(context.Background(), tc, "", "conn2, conn3")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "conn2", statuses[0].ConnectionName)

	statuses, err = adapter.GetTokenStatus(context.Background(), tc, "user2", "")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "conn3", statuses[0].ConnectionName)
}
