// Package push implements web-push delivery with VAPID signing.
package push

import (
	"context"
	"io"
	"log"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/yuu19/SubTrack/app/models"
	"github.com/yuu19/SubTrack/internal/pkg/env"
	"github.com/yuu19/SubTrack/internal/pkg/notify"
)

const messageTTL = 60 * 60 * 24 // seconds; one reminder per day, no point outliving it

// WebPushSender signs and sends one message per endpoint using the
// service-level VAPID key pair.
type WebPushSender struct {
	subject    string
	publicKey  string
	privateKey string
}

// NewWebPushSender reads the VAPID configuration from the environment.
// Callers should check KeysConfigured before dispatching.
func NewWebPushSender() *WebPushSender {
	return &WebPushSender{
		subject:    env.GetEnv("VAPID_SUBJECT", "mailto:no-reply@example.com"),
		publicKey:  env.GetEnv("VAPID_PUBLIC_KEY", ""),
		privateKey: env.GetEnv("VAPID_PRIVATE_KEY", ""),
	}
}

// KeysConfigured reports whether both VAPID keys are present.
func (s *WebPushSender) KeysConfigured() bool {
	return s.publicKey != "" && s.privateKey != ""
}

// PublicKey returns the VAPID public key clients use to subscribe.
func (s *WebPushSender) PublicKey() string {
	return s.publicKey
}

// Send delivers payload to a single endpoint. 404/410 from the push service
// means the endpoint no longer exists; every other non-2xx status and any
// transport error counts as a plain failure. One attempt, no retry.
func (s *WebPushSender) Send(ctx context.Context, endpoint models.PushEndpoint, payload []byte) notify.Outcome {
	sub := &webpush.Subscription{
		Endpoint: endpoint.Endpoint,
		Keys: webpush.Keys{
			P256dh: endpoint.P256dh,
			Auth:   endpoint.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, sub, &webpush.Options{
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             messageTTL,
	})
	if err != nil {
		log.Printf("push: send to %s: %v", endpoint.Endpoint, err)
		return notify.OutcomeFailed
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return notify.OutcomeGone
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return notify.OutcomeSent
	default:
		log.Printf("push: unexpected status %d from %s", resp.StatusCode, endpoint.Endpoint)
		return notify.OutcomeFailed
	}
}
