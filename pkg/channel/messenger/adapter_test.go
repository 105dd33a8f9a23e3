package messenger_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdrealofficial/node-bot-sub005/pkg/channel"
	"github.com/mdrealofficial/node-bot-sub005/pkg/channel/messenger"
	"github.com/mdrealofficial/node-bot-sub005/pkg/models"
)

func testContext() channel.Context {
	return channel.Context{
		Channel:     channel.Messenger,
		AccessToken: "token-123",
		RecipientID: "psid-42",
	}
}

func TestAdapter_Send_Text(t *testing.T) {
	var captured map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/messages", r.URL.Path)
		assert.Equal(t, "token-123", r.URL.Query().Get("access_token"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message_id": "mid.1"}`))
	}))
	defer server.Close()

	adapter := messenger.NewAdapter(slog.Default()).WithBaseURL(server.URL)

	err := adapter.Send(context.Background(), testContext(), channel.Message{Text: "hello"})
	require.NoError(t, err)

	message, ok := captured["message"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hello", message["text"])

	rec, ok := captured["recipient"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "psid-42", rec["id"])
}

func TestAdapter_Send_Buttons(t *testing.T) {
	var captured map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message_id": "mid.2"}`))
	}))
	defer server.Close()

	adapter := messenger.NewAdapter(slog.Default()).WithBaseURL(server.URL)

	msg := channel.Message{
		Text: "Pick one",
		Buttons: []models.ButtonOption{
			{Title: "Support", NextNode: "support"},
			{Title: "Sales", NextNode: "sales"},
		},
	}

	require.NoError(t, adapter.Send(context.Background(), testContext(), msg))

	message := captured["message"].(map[string]any)
	attachment := message["attachment"].(map[string]any)
	assert.Equal(t, "template", attachment["type"])

	payload := attachment["payload"].(map[string]any)
	assert.Equal(t, "Pick one", payload["text"])

	buttons := payload["buttons"].([]any)
	require.Len(t, buttons, 2)

	first := buttons[0].(map[string]any)
	assert.Equal(t, "postback", first["type"])
	assert.Equal(t, "Support", first["title"])
	assert.Equal(t, "1", first["payload"])
}

func TestAdapter_Send_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "Invalid OAuth access token", "code": 190}}`))
	}))
	defer server.Close()

	adapter := messenger.NewAdapter(slog.Default()).WithBaseURL(server.URL)

	err := adapter.Send(context.Background(), testContext(), channel.Message{Text: "hello"})
	require.Error(t, err)
	require.True(t, channel.IsProviderError(err))

	var providerErr *channel.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, 190, providerErr.Code)
	assert.Equal(t, http.StatusBadRequest, providerErr.StatusCode)
}

func TestAdapter_Send_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	server.Close() // force connection refused

	adapter := messenger.NewAdapter(slog.Default()).WithBaseURL(server.URL)

	err := adapter.Send(context.Background(), testContext(), channel.Message{Text: "hello"})
	require.Error(t, err)
	assert.False(t, channel.IsProviderError(err))
}
