package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pointsplane/pkg/config"

	"go.uber.org/zap"
)

// Notifier delivers one message to a user's chat. Implementations are
// best-effort: a blocked bot or transport error must not bubble past the
// worker.
type Notifier interface {
	Send(ctx context.Context, userID int64, text string) error
}

// NewNotifier selects the Telegram implementation when a bot token is
// configured and a no-op otherwise, so business logic never checks for
// missing credentials.
func NewNotifier(cfg *config.Config) Notifier {
	if cfg.Telegram.BotToken == "" {
		zap.L().Warn("[Notifier] bot token not configured, confirmations will not be sent")
		return &noopNotifier{}
	}
	return NewTelegramNotifier(cfg.Telegram.BotToken)
}

type noopNotifier struct{}

func (n *noopNotifier) Send(ctx context.Context, userID int64, text string) error {
	zap.L().Debug("notifier disabled, dropping message", zap.Int64("user_id", userID))
	return nil
}

type telegramNotifier struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewTelegramNotifier(token string) Notifier {
	return &telegramNotifier{
		token:   token,
		baseURL: "https://api.telegram.org",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (n *telegramNotifier) Send(ctx context.Context, userID int64, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:    userID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sendMessage returned %d: %s", resp.StatusCode, raw)
	}

	return nil
}
