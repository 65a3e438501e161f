package fcm

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type SenderInterface interface {
	SendNotification(ctx context.Context, title, body, deviceToken string) (string, error)
}

type Client struct {
	messaging *messaging.Client
}

// InitFCMClient builds the process-wide FCM handle. The client is
// stateless per call, so it is created once at startup and reused.
func InitFCMClient(ctx context.Context, credentialsFile string) (*Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, err
	}

	msg, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	return &Client{messaging: msg}, nil
}

// SendNotification delivers a single push message and returns the
// provider-assigned message ID. No retry, no batching; the provider's
// own delivery semantics apply.
func (c *Client) SendNotification(ctx context.Context, title, body, deviceToken string) (string, error) {
	return c.messaging.Send(ctx, &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Token: deviceToken,
	})
}
