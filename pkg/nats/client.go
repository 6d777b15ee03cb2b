package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Client wraps a NATS connection for request/reply traffic
type Client struct {
	conn      *nats.Conn
	requester requester
	logger    *logrus.Entry
	config    *Config
}

// requester is the request half of *nats.Conn
type requester interface {
	RequestWithContext(ctx context.Context, subject string, data []byte) (*nats.Msg, error)
}

// Config holds NATS configuration
type Config struct {
	URL        string
	ClientID   string
	QueueGroup string
}

// RequestHandler decodes a request payload and returns the value to send back
type RequestHandler func(subject string, data []byte) (interface{}, error)

// NewClient creates a new NATS client
func NewClient(config *Config) (*Client, error) {
	logger := logrus.WithField("component", "nats-client")

	opts := []nats.Option{
		nats.Name(config.ClientID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Errorf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Errorf("NATS error: %v", err)
		}),
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Client{
		conn:      conn,
		requester: conn,
		logger:    logger,
		config:    config,
	}, nil
}

// Close drains subscriptions and closes the connection
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.logger.Warnf("NATS drain failed: %v", err)
		c.conn.Close()
	}
}

// Serve answers requests on subject within the configured queue group.
// Every reply is a JSON Reply envelope.
func (c *Client) Serve(subject string, handler RequestHandler) (*Subscription, error) {
	sub, err := c.conn.QueueSubscribe(subject, c.config.QueueGroup, func(msg *nats.Msg) {
		reply := HandleRequest(handler, msg.Subject, msg.Data)
		if msg.Reply == "" {
			c.logger.Warnf("Dropping request on %s without reply subject", msg.Subject)
			return
		}
		if err := msg.Respond(reply); err != nil {
			c.logger.Errorf("Failed to respond on %s: %v", msg.Subject, err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	c.logger.Infof("Serving %s (queue %s)", subject, c.config.QueueGroup)

	return &Subscription{
		sub:    sub,
		logger: c.logger,
	}, nil
}

// Request sends req to subject and decodes the reply data into resp
func (c *Client) Request(ctx context.Context, subject string, req, resp interface{}) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	msg, err := c.requester.RequestWithContext(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", subject, err)
	}

	return DecodeReply(msg.Data, resp)
}

// HandleRequest runs handler and wraps its result or error in a Reply
func HandleRequest(handler RequestHandler, subject string, data []byte) []byte {
	result, err := handler(subject, data)
	reply := Reply{OK: err == nil, Timestamp: time.Now()}
	if err != nil {
		reply.Error = err.Error()
	} else if result != nil {
		encoded, mErr := json.Marshal(result)
		if mErr != nil {
			reply.OK = false
			reply.Error = fmt.Sprintf("failed to marshal reply: %v", mErr)
		} else {
			reply.Data = encoded
		}
	}

	out, err := json.Marshal(reply)
	if err != nil {
		// Reply holds only strings, bytes and a timestamp
		return []byte(`{"ok":false,"error":"failed to marshal reply"}`)
	}
	return out
}

// DecodeReply unwraps a Reply envelope into resp. A failed reply becomes an error.
func DecodeReply(data []byte, resp interface{}) error {
	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	if !reply.OK {
		return &RemoteError{Message: reply.Error}
	}
	if resp == nil || len(reply.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(reply.Data, resp); err != nil {
		return fmt.Errorf("failed to decode reply data: %w", err)
	}
	return nil
}

// Subscription wraps NATS subscription
type Subscription struct {
	sub    *nats.Subscription
	logger *logrus.Entry
}

// Unsubscribe removes the subscription
func (s *Subscription) Unsubscribe() error {
	if err := s.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	s.logger.Infof("Unsubscribed from %s", s.sub.Subject)
	return nil
}
