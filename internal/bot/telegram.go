package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TelegramClient delivers messages through the Bot API sendMessage
// method. An empty token turns every send into a logged no-op, so the
// service runs fine without bot credentials.
type TelegramClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

func NewTelegramClient(baseURL, token string, log *zap.Logger) *TelegramClient {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

func (c *TelegramClient) Send(ctx context.Context, chatID int64, text string) error {
	if c.token == "" {
		c.log.Debug("bot token not configured, dropping message", zap.Int64("chat_id", chatID))
		return nil
	}

	body, _ := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("failed to send telegram message", zap.Int64("chat_id", chatID), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		c.log.Warn("telegram send failed", zap.Int("status", resp.StatusCode), zap.ByteString("body", b))
		return fmt.Errorf("telegram returned %d", resp.StatusCode)
	}
	return nil
}
