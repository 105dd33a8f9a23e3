// Package whatsapp implements the channel adapter for WhatsApp via the Cloud
// API. Unlike the Graph Send API, sends are addressed to a phone number and
// authenticated with a bearer token; button choices render as an interactive
// reply-button message (capped at three by the provider).
package whatsapp

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

	maxReplyButtons = 3
)

type Adapter struct {
	client *resty.Client
	logger *slog.Logger

	// phoneNumberID identifies the business sender; supplied by the account
	// subsystem at adapter construction.
	phoneNumberID string
}

func NewAdapter(logger *slog.Logger, phoneNumberID string) *Adapter {
	return &Adapter{
		client:        resty.New().SetBaseURL(defaultBaseURL).SetTimeout(sendTimeout),
		logger:        logger.With("channel", channel.WhatsApp),
		phoneNumberID: phoneNumberID,
	}
}

// WithBaseURL overrides the Cloud API endpoint. Used by tests.
func (a *Adapter) WithBaseURL(baseURL string) *Adapter {
	a.client.SetBaseURL(baseURL)

	return a
}

type textBody struct {
	Body string `json:"body"`
}

type mediaBody struct {
	Link string `json:"link"`
}

type replyButton struct {
	Type  string `json:"type"`
	Reply struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"reply"`
}

type interactiveBody struct {
	Type string `json:"type"`
	Body struct {
		Text string `json:"text"`
	} `json:"body"`
	Action struct {
		Buttons []replyButton `json:"buttons"`
	} `json:"action"`
}

type sendRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *textBody        `json:"text,omitempty"`
	Image            *mediaBody       `json:"image,omitempty"`
	Video            *mediaBody       `json:"video,omitempty"`
	Interactive      *interactiveBody `json:"interactive,omitempty"`
}

type cloudErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (a *Adapter) Send(ctx context.Context, cc channel.Context, msg channel.Message) error {
	body := sendRequest{
		MessagingProduct: "whatsapp",
		To:               cc.RecipientID,
	}

	switch {
	case len(msg.Buttons) > 0:
		interactive := &interactiveBody{Type: "button"}
		interactive.Body.Text = msg.Text

		for i, option := range msg.Buttons {
			if i == maxReplyButtons {
				a.logger.WarnContext(ctx, "WhatsApp supports at most three reply buttons, truncating",
					"buttons", len(msg.Buttons))

				break
			}

			button := replyButton{Type: "reply"}
			button.Reply.ID = strconv.Itoa(i + 1)
			button.Reply.Title = option.Title
			interactive.Action.Buttons = append(interactive.Action.Buttons, button)
		}

		body.Type = "interactive"
		body.Interactive = interactive
	case msg.Attachment != nil && msg.Attachment.Type == channel.AttachmentVideo:
		body.Type = "video"
		body.Video = &mediaBody{Link: msg.Attachment.URL}
	case msg.Attachment != nil:
		body.Type = "image"
		body.Image = &mediaBody{Link: msg.Attachment.URL}
	default:
		body.Type = "text"
		body.Text = &textBody{Body: msg.Text}
	}

	envelope := &cloudErrorEnvelope{}

	resp, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(cc.AccessToken).
		SetBody(body).
		SetError(envelope).
		Post("/" + a.phoneNumberID + "/messages")
	if err != nil {
		return fmt.Errorf("whatsapp send failed: %w", err)
	}

	if resp.IsError() {
		a.logger.ErrorContext(ctx, "WhatsApp rejected message",
			"status", resp.StatusCode(), "code", envelope.Error.Code, "recipient_id", cc.RecipientID)

		return &channel.ProviderError{
			Channel:    channel.WhatsApp,
			StatusCode: resp.StatusCode(),
			Code:       envelope.Error.Code,
			Message:    envelope.Error.Message,
		}
	}

	return nil
}
