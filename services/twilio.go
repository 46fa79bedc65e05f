package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// SMSSender delivers a single text message. From reports the sender number so
// that alerts addressed to the sender itself can be skipped.
type SMSSender interface {
	Send(ctx context.Context, to, body string) (string, error)
	From() string
}

// twilioMessage is the subset of the Messages resource we read back
type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// twilioError is the error body returned by the Twilio REST API
type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

// TwilioClient sends SMS through the Twilio Messages REST API
type TwilioClient struct {
	httpClient *resty.Client
	accountSID string
	fromNumber string
	logger     *zap.Logger
}

// NewTwilioClient creates a client bound to one account and sender number.
// Requests are attempted once; the caller bounds them with its context.
func NewTwilioClient(baseURL, accountSID, authToken, fromNumber string, timeout time.Duration, logger *zap.Logger) *TwilioClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetBasicAuth(accountSID, authToken).
		SetHeader("Accept", "application/json")

	return &TwilioClient{
		httpClient: client,
		accountSID: accountSID,
		fromNumber: fromNumber,
		logger:     logger,
	}
}

func (c *TwilioClient) From() string {
	return c.fromNumber
}

// Send posts one message and returns the message SID assigned by Twilio
func (c *TwilioClient) Send(ctx context.Context, to, body string) (string, error) {
	var message twilioMessage
	var apiErr twilioError

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("accountSid", c.accountSID).
		SetFormData(map[string]string{
			"To":   to,
			"From": c.fromNumber,
			"Body": body,
		}).
		SetResult(&message).
		SetError(&apiErr).
		Post("/2010-04-01/Accounts/{accountSid}/Messages.json")
	if err != nil {
		c.logger.Error("twilio request failed", zap.Error(err))
		return "", fmt.Errorf("failed to call Twilio API: %w", err)
	}

	if resp.IsError() {
		c.logger.Error("twilio returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.Int("code", apiErr.Code),
			zap.String("msg", apiErr.Message),
		)
		if apiErr.Message != "" {
			return "", fmt.Errorf("Twilio API error: %s (code: %d, status: %d)", apiErr.Message, apiErr.Code, resp.StatusCode())
		}
		return "", fmt.Errorf("Twilio API error: status %d", resp.StatusCode())
	}

	c.logger.Info("sms sent", zap.String("sid", message.SID), zap.String("status", message.Status))
	return message.SID, nil
}
