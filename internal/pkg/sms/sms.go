package sms

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Twilio hard-caps message bodies at 1600 characters; stay under it.
const maxBodyLen = 1590

// Config holds SMS provider settings (Twilio REST API).
type Config struct {
	Enable     bool   `json:"enable"      yaml:"enable"`
	AccountSID string `json:"account_sid" yaml:"account_sid"`
	AuthToken  string `json:"auth_token"  yaml:"auth_token"`
	From       string `json:"from"        yaml:"from"` // E.164 sender number
}

// Sender sends SMS messages via the Twilio Messages API.
type Sender struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Sender {
	return &Sender{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Send delivers a text message to an E.164 number.
func (s *Sender) Send(to, body string) error {
	if !s.cfg.Enable {
		return nil
	}
	if len(body) > maxBodyLen {
		body = body[:maxBodyLen]
	}

	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", s.cfg.AccountSID)
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.cfg.From)
	form.Set("Body", body)

	req, err := http.NewRequest("POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("twilio error %d", resp.StatusCode)
	}
	return nil
}
