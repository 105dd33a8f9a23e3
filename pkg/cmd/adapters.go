package cmd

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/mdrealofficial/node-bot-sub005/pkg/channel"
	"github.com/mdrealofficial/node-bot-sub005/pkg/channel/instagram"
	"github.com/mdrealofficial/node-bot-sub005/pkg/channel/messenger"
	"github.com/mdrealofficial/node-bot-sub005/pkg/channel/whatsapp"
)

// NewAdapters builds the channel adapter registry. The WhatsApp adapter is
// registered only when a phone number id is configured; Cloud API sends are
// addressed per business phone number.
func NewAdapters(logger *slog.Logger, whatsappPhoneNumberID string) map[string]channel.Adapter {
	adapters := map[string]channel.Adapter{
		channel.Messenger: messenger.NewAdapter(logger),
		channel.Instagram: instagram.NewAdapter(logger),
	}

	if whatsappPhoneNumberID != "" {
		adapters[channel.WhatsApp] = whatsapp.NewAdapter(logger, whatsappPhoneNumberID)
	}

	return adapters
}

// NewRedisClient parses a redis:// URL into a client. An empty URL returns
// nil: trigger dedupe is optional.
func NewRedisClient(redisURL string) *redis.Client {
	if redisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(err)
	}

	return redis.NewClient(opts)
}
