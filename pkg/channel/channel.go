// Package channel defines the transport boundary between the flow engine and
// messaging providers. One Adapter implementation exists per channel; the
// interpreter is polymorphic over this interface so the node-walk logic is
// written once instead of once per channel.
package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/mdrealofficial/node-bot-sub005/pkg/models"
)

// Channel names understood by the engine.
const (
	Messenger = "messenger"
	Instagram = "instagram"
	WhatsApp  = "whatsapp"
)

// Context carries the per-send channel state explicitly instead of ambient
// credentials or per-channel table naming. Access tokens are supplied by the
// account subsystem on every invocation; the engine treats them as read-only
// and never persists them.
type Context struct {
	Channel        string
	AccessToken    string
	RecipientID    string
	ConversationID string
}

// AttachmentType is the media kind of an outbound attachment.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentVideo AttachmentType = "video"
)

// Attachment is a media payload referenced by URL.
type Attachment struct {
	Type AttachmentType
	URL  string
}

// Message is one outbound send. Buttons, when present, are rendered as the
// provider's interactive equivalent with 1-based postback payloads.
type Message struct {
	Text       string
	Attachment *Attachment
	Buttons    []models.ButtonOption
}

// Adapter sends one outbound message through a provider-specific transport.
type Adapter interface {
	Send(ctx context.Context, cc Context, msg Message) error
}

// ProviderError is a failure reported by the messaging provider itself (non-2xx
// response or provider error envelope), as opposed to a network-level failure
// which surfaces as a plain wrapped error.
type ProviderError struct {
	Channel    string
	StatusCode int
	Code       int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error (http %d, code %d): %s", e.Channel, e.StatusCode, e.Code, e.Message)
}

// IsProviderError reports whether err originated from the provider rather than
// the network.
func IsProviderError(err error) bool {
	var target *ProviderError

	return errors.As(err, &target)
}
