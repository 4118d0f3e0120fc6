package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url, name string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, msg []byte) error {
	return p.conn.Publish(subject, msg)
}

func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}

type HandlerFunc func(ctx context.Context, subject string, data []byte) error

type NATSSubscriber struct {
	conn *nats.Conn
}

func NewNATSSubscriber(url, name string) (*NATSSubscriber, error) {
	conn, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSSubscriber{conn: conn}, nil
}

// Subscribe calls handler for every message on subject until ctx is done.
// Handler errors go to onError when it is set.
func (s *NATSSubscriber) Subscribe(ctx context.Context, subject string, handler HandlerFunc, onError func(error)) error {
	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		if err := handler(ctx, msg.Subject, msg.Data); err != nil && onError != nil {
			onError(err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
