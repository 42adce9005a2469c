// Package notify publishes account lifecycle notifications to the message
// queue. Delivery is best effort: publishing happens off the request path
// through a bounded dispatcher, and a full buffer drops the notification
// rather than stalling a login or registration.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/nimbusnote/authserver/internal/mq"
)

// Notification kinds carried in the message payload and mirror attributes.
const (
	KindWelcome       = "account.welcome"
	KindLoginAlert    = "account.login-alert"
	KindPasswordReset = "account.password-reset"
	KindPasswordSet   = "account.password-changed"
)

// Notification is the queue payload for a single outbound message.
type Notification struct {
	Kind       string    `json:"kind"`
	UserID     string    `json:"userId"`
	Email      string    `json:"email"`
	Name       string    `json:"name,omitempty"`
	DeviceName string    `json:"deviceName,omitempty"`
	ResetLink  string    `json:"resetLink,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher is the subset of the queue API the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Notifier serializes notifications and hands them to the dispatcher.
type Notifier struct {
	dispatcher *Dispatcher
}

// New wires a Notifier to a queue publisher. The dispatcher owns a single
// worker goroutine; call Close during shutdown to flush it.
func New(publisher Publisher, queue string, bufferSize int) *Notifier {
	sink := func(ctx context.Context, n Notification) {
		data, err := json.Marshal(n)
		if err != nil {
			log.Printf("notify: marshal %s: %v", n.Kind, err)
			return
		}
		attrs := map[string]string{"kind": n.Kind}
		if _, err := publisher.Publish(ctx, queue, data, attrs); err != nil {
			log.Printf("notify: publish %s: %v", n.Kind, err)
		}
	}
	return &Notifier{dispatcher: NewDispatcher(bufferSize, sink)}
}

// Welcome announces a newly registered account.
func (n *Notifier) Welcome(ctx context.Context, userID, email, name string) {
	n.send(ctx, Notification{
		Kind:   KindWelcome,
		UserID: userID,
		Email:  email,
		Name:   name,
	})
}

// LoginAlert reports a successful login from a device.
func (n *Notifier) LoginAlert(ctx context.Context, userID, email, deviceName string) {
	n.send(ctx, Notification{
		Kind:       KindLoginAlert,
		UserID:     userID,
		Email:      email,
		DeviceName: deviceName,
	})
}

// PasswordResetLink delivers the reset link for a requested reset.
func (n *Notifier) PasswordResetLink(ctx context.Context, userID, email, link string) {
	n.send(ctx, Notification{
		Kind:      KindPasswordReset,
		UserID:    userID,
		Email:     email,
		ResetLink: link,
	})
}

// PasswordChanged confirms a completed password reset.
func (n *Notifier) PasswordChanged(ctx context.Context, userID, email string) {
	n.send(ctx, Notification{
		Kind:   KindPasswordSet,
		UserID: userID,
		Email:  email,
	})
}

func (n *Notifier) send(ctx context.Context, msg Notification) {
	if n == nil {
		return
	}
	msg.OccurredAt = time.Now()
	n.dispatcher.Emit(ctx, msg)
}

// Dropped reports how many notifications were discarded on a full buffer.
func (n *Notifier) Dropped() uint64 {
	if n == nil {
		return 0
	}
	return n.dispatcher.Dropped()
}

// Close flushes buffered notifications and stops the worker.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.dispatcher.Close()
}

var _ Publisher = (*mq.MQ)(nil)
