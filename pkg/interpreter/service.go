// Package interpreter subscribes to the monitor server's websocket feed
// and hands every relayed reading to a callback.
package interpreter

import (
	"context"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/elster_gateway/pkg/types"
)

const (
	maxRetries     = 10
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 60 * time.Second
	// Readings arrive every few minutes; pings keep the deadline fresh.
	readTimeout  = 90 * time.Second
	pingInterval = 30 * time.Second
)

var ErrGaveUp = errors.New("max retries reached")

type Listener struct {
	url     url.URL
	log     logrus.FieldLogger
	handler func(reading *types.MeterReading)
	// retryDelay is the backoff base; tests shorten it.
	retryDelay time.Duration
}

func NewListener(host string, tls bool, log logrus.FieldLogger, handler func(reading *types.MeterReading)) *Listener {
	scheme := "ws"
	if tls {
		scheme = "wss"
	}
	return &Listener{
		url:        url.URL{Scheme: scheme, Host: host, Path: "/ws"},
		log:        log,
		handler:    handler,
		retryDelay: baseRetryDelay,
	}
}

// Run manages the websocket connection until ctx is cancelled (nil) or
// ErrGaveUp after maxRetries failed connects in a row.
func (l *Listener) Run(ctx context.Context) error {
	retryCount := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		// Calculate retry delay with exponential backoff
		if retryCount > 0 {
			retryDelay := time.Duration(1<<(retryCount-1)) * l.retryDelay
			if retryDelay > maxRetryDelay {
				retryDelay = maxRetryDelay
			}
			l.log.Infof("Retrying connection in %v... (attempt %d/%d)", retryDelay, retryCount+1, maxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil
			}
		}

		l.log.Infof("Connecting to %s", l.url.String())

		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		c, _, err := dialer.DialContext(ctx, l.url.String(), nil)
		if err != nil {
			l.log.Warnf("Connection failed: %v", err)
			retryCount++
			if retryCount >= maxRetries {
				return errors.Wrapf(ErrGaveUp, "%d attempts", maxRetries)
			}
			continue
		}

		l.log.Info("Connected! Accepting meter readings.")
		retryCount = 0

		broken := l.handleConnection(ctx, c)
		c.Close()
		if !broken {
			return nil
		}
		l.log.Warn("Connection lost, will retry...")
		retryCount = 1
	}
}

// handleConnection reads until the connection breaks (true) or ctx is
// cancelled (false).
func (l *Listener) handleConnection(ctx context.Context, c *websocket.Conn) bool {
	done := make(chan struct{})

	c.SetReadDeadline(time.Now().Add(readTimeout))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					l.log.Warnf("WebSocket error: %v", err)
				} else {
					l.log.Infof("Connection closed: %v", err)
				}
				return
			}
			c.SetReadDeadline(time.Now().Add(readTimeout))

			if messageType != websocket.TextMessage {
				l.log.Debugf("Received unexpected message type: %d", messageType)
				continue
			}
			if reading := types.MeterReadingFromJsonBytes(message); reading != nil {
				l.handler(reading)
			} else {
				l.log.Warnf("Failed to parse meter reading: %s", string(message))
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return true
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := c.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				l.log.Debugf("Failed to send ping: %v", err)
			}
		case <-ctx.Done():
			l.log.Info("Shutting down, closing connection...")
			err := c.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			if err != nil {
				l.log.Debugf("Error sending close message: %v", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return false
		}
	}
}
