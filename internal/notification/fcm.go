// Package notification delivers push notifications to pet owners.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"vitalpaw-monitor/internal/breaker"
)

// fcmMessage is the legacy FCM HTTP request body.
type fcmMessage struct {
	To           string          `json:"to"`
	Priority     string          `json:"priority"`
	Notification fcmNotification `json:"notification"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

// FCMClient sends notifications through Firebase Cloud Messaging.
type FCMClient struct {
	httpClient *resty.Client
	endpoint   string
	breaker    *breaker.Breaker
	logger     *zap.Logger
}

// NewFCMClient creates a client posting to endpoint. br may be nil.
func NewFCMClient(endpoint, serverKey string, timeout time.Duration, br *breaker.Breaker, logger *zap.Logger) *FCMClient {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "key="+serverKey)

	return &FCMClient{
		httpClient: client,
		endpoint:   endpoint,
		breaker:    br,
		logger:     logger,
	}
}

// Send delivers one notification to token.
func (c *FCMClient) Send(ctx context.Context, token, title, body string) error {
	if c.breaker == nil {
		return c.send(ctx, token, title, body)
	}
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.send(ctx, token, title, body)
	})
}

func (c *FCMClient) send(ctx context.Context, token, title, body string) error {
	var result fcmResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(fcmMessage{
			To:           token,
			Priority:     "high",
			Notification: fcmNotification{Title: title, Body: body},
		}).
		SetResult(&result).
		Post(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to call FCM: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("FCM returned status %d", resp.StatusCode())
	}
	if result.Failure > 0 {
		reason := "unknown"
		if len(result.Results) > 0 && result.Results[0].Error != "" {
			reason = result.Results[0].Error
		}
		return fmt.Errorf("FCM rejected message: %s", reason)
	}

	c.logger.Debug("Push notification sent", zap.String("title", title))
	return nil
}

// LogGateway stands in for a push provider when none is configured.
type LogGateway struct {
	Logger *zap.Logger
}

// Send logs the notification and reports success.
func (g LogGateway) Send(_ context.Context, _ string, title, body string) error {
	g.Logger.Info("Push delivery disabled, notification logged only",
		zap.String("title", title),
		zap.String("body", body))
	return nil
}
