package services

import (
	"context"

	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
)

// PushMessage is a device notification
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// Pusher delivers a push notification to one device token
type Pusher interface {
	Push(ctx context.Context, token string, msg PushMessage) error
}

// FCMPusher sends through Firebase Cloud Messaging
type FCMPusher struct {
	client *messaging.Client
}

func NewFCMPusher(client *messaging.Client) *FCMPusher {
	return &FCMPusher{client: client}
}

func (p *FCMPusher) Push(ctx context.Context, token string, msg PushMessage) error {
	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "friends_channel",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}

	if _, err := p.client.Send(ctx, message); err != nil {
		return errors.Wrap(err, "send FCM message")
	}
	return nil
}

// NoopPusher drops every message. Used when push is disabled.
type NoopPusher struct{}

func (NoopPusher) Push(context.Context, string, PushMessage) error {
	return nil
}
