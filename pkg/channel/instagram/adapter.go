// Package instagram implements the channel adapter for Instagram Direct via
// the Graph API. The wire format matches Messenger's Send API with Instagram's
// quick-reply rendering for button choices.
package instagram

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

type Adapter struct {
	client *resty.Client
	logger *slog.Logger
}

func NewAdapter(logger *slog.Logger) *Adapter {
	return &Adapter{
		client: resty.New().SetBaseURL(defaultBaseURL).SetTimeout(sendTimeout),
		logger: logger.With("channel", channel.Instagram),
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

type quickReply struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Payload     string `json:"payload"`
}

type attachmentBody struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

type messageBody struct {
	Text         string          `json:"text,omitempty"`
	Attachment   *attachmentBody `json:"attachment,omitempty"`
	QuickReplies []quickReply    `json:"quick_replies,omitempty"`
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

func (a *Adapter) Send(ctx context.Context, cc channel.Context, msg channel.Message) error {
	body := sendRequest{Recipient: recipient{ID: cc.RecipientID}}
	body.Message.Text = msg.Text

	if msg.Attachment != nil {
		attachment := &attachmentBody{Type: string(msg.Attachment.Type)}
		attachment.Payload.URL = msg.Attachment.URL
		body.Message.Text = ""
		body.Message.Attachment = attachment
	}

	for i, option := range msg.Buttons {
		body.Message.QuickReplies = append(body.Message.QuickReplies, quickReply{
			ContentType: "text",
			Title:       option.Title,
			Payload:     strconv.Itoa(i + 1),
		})
	}

	envelope := &graphErrorEnvelope{}

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("access_token", cc.AccessToken).
		SetBody(body).
		SetError(envelope).
		Post("/me/messages")
	if err != nil {
		return fmt.Errorf("instagram send failed: %w", err)
	}

	if resp.IsError() {
		a.logger.ErrorContext(ctx, "Instagram rejected message",
			"status", resp.StatusCode(), "code", envelope.Error.Code, "recipient_id", cc.RecipientID)

		return &channel.ProviderError{
			Channel:    channel.Instagram,
			StatusCode: resp.StatusCode(),
			Code:       envelope.Error.Code,
			Message:    envelope.Error.Message,
		}
	}

	return nil
}
