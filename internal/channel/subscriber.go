// Package channel subscribes to the render platform's per-job push stream.
package channel

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/shortreel/api/internal/config"
	"github.com/shortreel/api/internal/model"
)

// Subscriber dials the platform's job-status stream. A failed dial or a
// dropped connection is not a user-facing error: the watcher falls back to
// polling instead.
type Subscriber struct {
	wsURL string
	token string
}

func NewSubscriber(cfg *config.PlatformConfig) *Subscriber {
	return &Subscriber{wsURL: cfg.WSURL, token: cfg.Token}
}

// IsConfigured returns true if a stream URL is set.
func (s *Subscriber) IsConfigured() bool {
	return s.wsURL != ""
}

// Subscription is one live per-job stream. It terminates itself after
// delivering a terminal delta so a reconnect can never double-process a
// finished job.
type Subscription struct {
	updates   chan model.JobUpdate
	confirmed chan struct{}
	done      chan struct{}

	conn        *websocket.Conn
	confirmOnce sync.Once
	closeOnce   sync.Once
}

// Updates delivers decoded job deltas. Closed when the stream ends.
func (sub *Subscription) Updates() <-chan model.JobUpdate { return sub.updates }

// Confirmed is closed once the platform has acknowledged the subscription.
// If it never closes within the watcher's grace period, polling takes over.
func (sub *Subscription) Confirmed() <-chan struct{} { return sub.confirmed }

// Done is closed when the read loop has exited.
func (sub *Subscription) Done() <-chan struct{} { return sub.done }

// Close tears the connection down. Safe to call more than once.
func (sub *Subscription) Close() {
	sub.closeOnce.Do(func() {
		sub.conn.Close()
	})
}

// Subscribe opens the push stream for one job.
func (s *Subscriber) Subscribe(ctx context.Context, jobID string) (*Subscription, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("push channel not configured")
	}

	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	url := fmt.Sprintf("%s/jobs/%s", s.wsURL, jobID)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial push channel: %w", err)
	}

	sub := &Subscription{
		updates:   make(chan model.JobUpdate, 16),
		confirmed: make(chan struct{}),
		done:      make(chan struct{}),
		conn:      conn,
	}

	go sub.readLoop(ctx, jobID)
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

func (sub *Subscription) readLoop(ctx context.Context, jobID string) {
	defer close(sub.done)
	defer close(sub.updates)
	defer sub.Close()

	for {
		var u model.JobUpdate
		if err := sub.conn.ReadJSON(&u); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[Channel] job %s stream error: %v", jobID, err)
			}
			return
		}

		// Any frame from the server, ack or delta, confirms delivery works.
		sub.confirmOnce.Do(func() { close(sub.confirmed) })

		if u.Status == "" {
			continue
		}
		if u.JobID == "" {
			u.JobID = jobID
		}

		select {
		case sub.updates <- u:
		case <-ctx.Done():
			return
		}

		// Stop consuming the moment a terminal delta is through.
		if u.Terminal() {
			return
		}
	}
}
