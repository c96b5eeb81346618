package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"feeledger_app_echo/internal/config"
)

// WahaService delivers receipts over WhatsApp through a WAHA gateway
type WahaService struct {
	baseURL string
	apiKey  string
	session string
	client  *http.Client
	pause   func(ctx context.Context, d time.Duration) error
}

func NewWahaService(cfg config.WAHAConfig) *WahaService {
	session := cfg.Session
	if session == "" {
		session = "default"
	}
	return &WahaService{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		session: session,
		client:  &http.Client{Timeout: 15 * time.Second},
		pause:   sleepCtx,
	}
}

func (s *WahaService) makeRequest(ctx context.Context, method, endpoint string, payload interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func (s *WahaService) chatAction(ctx context.Context, endpoint, chatID string) error {
	return s.makeRequest(ctx, http.MethodPost, endpoint, map[string]string{
		"chatId":  chatID,
		"session": s.session,
	})
}

func (s *WahaService) sendText(ctx context.Context, chatID, text string) error {
	return s.makeRequest(ctx, http.MethodPost, "/api/sendText", map[string]string{
		"chatId":  chatID,
		"text":    text,
		"session": s.session,
	})
}

// NormalizeChatID normalizes WhatsApp chat IDs by adding required suffixes and standardizing country codes
func NormalizeChatID(chatId string) string {
	chatId = strings.TrimSpace(chatId)

	if strings.HasSuffix(chatId, "@g.us") {
		return chatId
	}

	chatId = strings.TrimSuffix(chatId, "@c.us")
	chatId = strings.TrimPrefix(chatId, "+")

	// Indonesian local numbers start with 0
	if strings.HasPrefix(chatId, "0") {
		chatId = "62" + strings.TrimPrefix(chatId, "0")
	}

	return chatId + "@c.us"
}

// SendMessage sends a message the way a person would: seen, typing, stop typing, send
func (s *WahaService) SendMessage(ctx context.Context, chatId, text string) error {
	chatId = NormalizeChatID(chatId)

	steps := []struct {
		endpoint string
		wait     time.Duration
	}{
		{"/api/sendSeen", 100 * time.Millisecond},
		{"/api/startTyping", 150 * time.Millisecond},
		{"/api/stopTyping", 50 * time.Millisecond},
	}
	for _, step := range steps {
		if err := s.chatAction(ctx, step.endpoint, chatId); err != nil {
			return fmt.Errorf("%s: %w", step.endpoint, err)
		}
		if err := s.pause(ctx, step.wait); err != nil {
			return err
		}
	}

	if err := s.sendText(ctx, chatId, text); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}

// Send implements MessageSender. WhatsApp has no subject line.
func (s *WahaService) Send(ctx context.Context, to, _, body string) error {
	return s.SendMessage(ctx, to, body)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
