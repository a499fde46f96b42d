// Package webpush delivers Web Push messages with VAPID authentication.
// SendAll settles every message independently and reports one Result per
// subscription; it never retries.
package webpush

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	wp "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/msyamrijal/jadwal-website/config"
)

// ErrGone means the push service no longer knows the subscription
var ErrGone = errors.New("push subscription gone")

// Target is one browser subscription
type Target struct {
	ID       string
	Endpoint string
	P256dh   string
	Auth     string
}

// Message pairs a target with its payload
type Message struct {
	Target  Target
	Payload []byte
}

// Result is the settled outcome of one Message
type Result struct {
	Target     Target
	StatusCode int
	Err        error
}

// OK reports a 2xx delivery
func (r Result) OK() bool {
	return r.Err == nil
}

// Gone reports 404/410, after which the subscription should be deleted
func (r Result) Gone() bool {
	return errors.Is(r.Err, ErrGone)
}

// Sender sends Web Push messages
type Sender struct {
	opts        wp.Options
	concurrency int
	logger      *zap.Logger
}

// NewSender creates a Sender. client may be nil.
func NewSender(cfg *config.PushConfig, client wp.HTTPClient, logger *zap.Logger) *Sender {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 16
	}
	return &Sender{
		opts: wp.Options{
			HTTPClient:      client,
			Subscriber:      cfg.Subscriber,
			TTL:             cfg.TTL,
			Urgency:         wp.UrgencyNormal,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		},
		concurrency: concurrency,
		logger:      logger,
	}
}

// PublicKey is handed to browsers for PushManager.subscribe
func (s *Sender) PublicKey() string {
	return s.opts.VAPIDPublicKey
}

// Send delivers one message
func (s *Sender) Send(ctx context.Context, msg Message) Result {
	sub := &wp.Subscription{
		Endpoint: msg.Target.Endpoint,
		Keys: wp.Keys{
			P256dh: msg.Target.P256dh,
			Auth:   msg.Target.Auth,
		},
	}

	opts := s.opts
	resp, err := wp.SendNotificationWithContext(ctx, msg.Payload, sub, &opts)
	if err != nil {
		return Result{Target: msg.Target, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	res := Result{Target: msg.Target, StatusCode: resp.StatusCode}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		res.Err = ErrGone
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		res.Err = fmt.Errorf("push service responded %d", resp.StatusCode)
	}
	return res
}

// SendAll delivers every message with bounded parallelism and waits for
// all of them. results[i] belongs to msgs[i].
func (s *Sender) SendAll(ctx context.Context, msgs []Message) []Result {
	results := make([]Result, len(msgs))

	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, msg := range msgs {
		i, msg := i, msg // per-iteration copies (go directive < 1.22)
		g.Go(func() error {
			res := s.Send(gctx, msg)
			results[i] = res
			if res.Err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			// per-message failures are reported in results, never cancel siblings
			return nil
		})
	}
	_ = g.Wait()

	if failed > 0 {
		s.logger.Warn("web push partially failed", zap.Int("total", len(msgs)), zap.Int("failed", failed))
	}
	return results
}

// GenerateVAPIDKeys creates a new key pair for push.vapid_* config
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return wp.GenerateVAPIDKeys()
}
