// Package messenger implements the channel adapter for Facebook Messenger via
// the Graph API Send API.
package messenger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mdrealofficial/node-bot-sub005/pkg/channel"
)

const (
	defaultBaseURL = "https://graph.facebook.com/v19.0"
	sendTimeout    = 10 * time.Second
)

// Adapter sends messages through the Messenger Send API.
type Adapter struct {
	client *resty.Client
	logger *slog.Logger
}

// NewAdapter creates a Messenger adapter with the production Graph API base URL.
func NewAdapter(logger *slog.Logger) *Adapter {
	return &Adapter{
		client: resty.New().SetBaseURL(defaultBaseURL).SetTimeout(sendTimeout),
		logger: logger.With("channel", channel.Messenger),
	}
}

// WithBaseURL overrides the Graph API endpoint. Used by tests.
func (a *Adapter) WithBaseURL(baseURL string) *Adapter {
	a.client.SetBaseURL(baseURL)

	return a
}

type recipient struct {
	ID string `json:"id"`
}

type mediaPayload struct {
	URL string `json:"url"`
}

type attachmentBody struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type postbackButton struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

type buttonTemplate struct {
	TemplateType string           `json:"template_type"`
	Text         string           `json:"text"`
	Buttons      []postbackButton `json:"buttons"`
}

type messageBody struct {
	Text       string          `json:"text,omitempty"`
	Attachment *attachmentBody `json:"attachment,omitempty"`
}

type sendRequest struct {
	Recipient recipient   `json:"recipient"`
	Message   messageBody `json:"message"`
}

type graphErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send delivers one message. Provider rejections surface as
// *channel.ProviderError; network failures as plain wrapped errors.
func (a *Adapter) Send(ctx context.Context, cc channel.Context, msg channel.Message) error {
	body := sendRequest{Recipient: recipient{ID: cc.RecipientID}}

	switch {
	case len(msg.Buttons) > 0:
		buttons := make([]postbackButton, 0, len(msg.Buttons))
		for i, option := range msg.Buttons {
			buttons = append(buttons, postbackButton{
				Type:    "postback",
				Title:   option.Title,
				Payload: strconv.Itoa(i + 1),
			})
		}

		body.Message.Attachment = &attachmentBody{
			Type: "template",
			Payload: buttonTemplate{
				TemplateType: "button",
				Text:         msg.Text,
				Buttons:      buttons,
			},
		}
	case msg.Attachment != nil:
		body.Message.Attachment = &attachmentBody{
			Type:    string(msg.Attachment.Type),
			Payload: mediaPayload{URL: msg.Attachment.URL},
		}
	default:
		body.Message.Text = msg.Text
	}

	envelope := &graphErrorEnvelope{}

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("access_token", cc.AccessToken).
		SetBody(body).
		SetError(envelope).
		Post("/me/messages")
	if err != nil {
		return fmt.Errorf("messenger send failed: %w", err)
	}

	if resp.IsError() {
		a.logger.ErrorContext(ctx, "Messenger rejected message",
			"status", resp.StatusCode(), "code", envelope.Error.Code, "recipient_id", cc.RecipientID)

		return &channel.ProviderError{
			Channel:    channel.Messenger,
			StatusCode: resp.StatusCode(),
			Code:       envelope.Error.Code,
			Message:    envelope.Error.Message,
		}
	}

	return nil
}
