package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

type Fast2SMSConfig struct {
	URL      string
	APIKey   string
	SenderID string
}

// Fast2SMSSender posts transactional messages to the Fast2SMS bulk API.
type Fast2SMSSender struct {
	cfg  Fast2SMSConfig
	http *http.Client
}

func NewFast2SMSSender(cfg Fast2SMSConfig) *Fast2SMSSender {
	return &Fast2SMSSender{cfg: cfg, http: &http.Client{Timeout: 15 * time.Second}}
}

type fast2smsRequest struct {
	Route    string `json:"route"`
	SenderID string `json:"sender_id"`
	Message  string `json:"message"`
	Language string `json:"language"`
	Numbers  string `json:"numbers"`
}

type fast2smsResponse struct {
	Return  bool `json:"return"`
	Message any  `json:"message"`
}

func (s *Fast2SMSSender) Send(ctx context.Context, phone, message string) error {
	if phone == "" {
		return fmt.Errorf("no phone number")
	}
	payload, err := json.Marshal(fast2smsRequest{
		Route:    "v3",
		SenderID: s.cfg.SenderID,
		Message:  message,
		Language: "english",
		Numbers:  phone,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authorization", s.cfg.APIKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out fast2smsResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode != http.StatusOK || !out.Return {
		return fmt.Errorf("sms provider rejected message: status %d: %v", resp.StatusCode, out.Message)
	}

	slog.Info("sms sent", "phone_suffix", lastDigits(phone, 4))
	return nil
}

func lastDigits(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
