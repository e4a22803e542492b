package testadapter

import (
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"golang.org/x/text/language"

	"github.com/mattermost/msteams-bot-testkit/server/schema"
)

// Config captures the identity of the simulated conversation and the adapter's
// behavior switches. Fields can be set directly, decoded from JSON, or loaded from the
// environment with LoadConfigFromEnv.
type Config struct {
	ChannelID           string `json:"channelId" envconfig:"CHANNEL_ID"`
	ServiceURL          string `json:"serviceUrl" envconfig:"SERVICE_URL"`
	ConversationID      string `json:"conversationId" envconfig:"CONVERSATION_ID"`
	UserID              string `json:"userId" envconfig:"USER_ID"`
	UserName            string `json:"userName" envconfig:"USER_NAME"`
	BotID               string `json:"botId" envconfig:"BOT_ID"`
	BotName             string `json:"botName" envconfig:"BOT_NAME"`
	Locale              string `json:"locale" envconfig:"LOCALE"`
	SendTraceActivities bool   `json:"sendTraceActivities" envconfig:"SEND_TRACE_ACTIVITIES"`
}

// DefaultConfig returns the identity used when the caller has no preference.
func DefaultConfig() *Config {
	return &Config{
		ChannelID:      "test",
		ServiceURL:     "https://test.com",
		ConversationID: "Convo1",
		UserID:         "user1",
		UserName:       "User1",
		BotID:          "bot",
		BotName:        "Bot",
		Locale:         "en-US",
	}
}

// LoadConfigFromEnv overlays environment variables named <prefix>_<FIELD> on the
// default configuration.
func LoadConfigFromEnv(prefix string) (*Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process(prefix, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to load test adapter configuration from environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) ProcessConfiguration() {
	c.ChannelID = strings.TrimSpace(c.ChannelID)
	c.ServiceURL = strings.TrimSpace(c.ServiceURL)
	c.ConversationID = strings.TrimSpace(c.ConversationID)
	c.UserID = strings.TrimSpace(c.UserID)
	c.UserName = strings.TrimSpace(c.UserName)
	c.BotID = strings.TrimSpace(c.BotID)
	c.BotName = strings.TrimSpace(c.BotName)
	c.Locale = strings.TrimSpace(c.Locale)
}

// Validate trims the configuration and checks the identity fields. The locale is
// rewritten in its canonical BCP 47 form.
func (c *Config) Validate() error {
	c.ProcessConfiguration()
	if c.ChannelID == "" {
		return errors.New("channel ID should not be empty")
	}
	if c.ServiceURL == "" {
		return errors.New("service URL should not be empty")
	}
	if c.ConversationID == "" {
		return errors.New("conversation ID should not be empty")
	}
	if c.UserID == "" {
		return errors.New("user ID should not be empty")
	}
	if c.BotID == "" {
		return errors.New("bot ID should not be empty")
	}
	if c.UserID == c.BotID {
		return errors.New("user ID and bot ID should differ")
	}

	if c.Locale != "" {
		tag, err := language.Parse(c.Locale)
		if err != nil {
			return errors.Wrapf(err, "invalid locale %q", c.Locale)
		}
		c.Locale = tag.String()
	}

	return nil
}

// Clone shallow copies the configuration.
func (c *Config) Clone() *Config {
	var clone = *c
	return &clone
}

// ConversationReference builds the fixed identity of the simulated conversation.
func (c *Config) ConversationReference() schema.ConversationReference {
	return schema.ConversationReference{
		ChannelID:  c.ChannelID,
		ServiceURL: c.ServiceURL,
		Locale:     c.Locale,
		Conversation: &schema.ConversationAccount{
			ID:   c.ConversationID,
			Name: c.ConversationID,
		},
		User: &schema.ChannelAccount{
			ID:   c.UserID,
			Name: c.UserName,
			Role: schema.RoleUser,
		},
		Bot: &schema.ChannelAccount{
			ID:   c.BotID,
			Name: c.BotName,
			Role: schema.RoleBot,
		},
	}
}
