// Package telegram реализует минимальный клиент Bot API для отправки
// сообщений пользователям. Идентификатор пользователя аккаунта
// совпадает с chat_id в Telegram.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client клиент Telegram Bot API.
type Client struct {
	apiURL     string
	token      string
	httpClient *http.Client
}

// NewClient создаёт новый клиент Bot API.
func NewClient(apiURL, token string) *Client {
	return &Client{
		apiURL:     apiURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify отправляет пользователю текстовое сообщение.
func (c *Client) Notify(ctx context.Context, userID int64, text string) error {
	const op = "telegram.Notify"

	body, err := json.Marshal(sendMessageRequest{ChatID: userID, Text: text})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	reqURL := fmt.Sprintf("%s/bot%s/sendMessage", c.apiURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	var result sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !result.OK {
		return fmt.Errorf("%s: telegram api error: %s", op, result.Description)
	}
	return nil
}
