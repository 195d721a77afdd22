package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tutoralloc/allocator/internal/model"
)

type Client struct{ nc *nats.Conn }

func Connect(url string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name("allocator"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Client{nc: nc}, nil
}

func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}

func (c *Client) Conn() *nats.Conn { return c.nc }

// Publisher sends every outcome to a subject as JSON. Consumers can filter
// by job with the Allocator-Job-Id header.
type Publisher struct {
	client  *Client
	subject string
}

func NewPublisher(url, subject string) (*Publisher, error) {
	c, err := Connect(url)
	if err != nil {
		return nil, err
	}
	return &Publisher{client: c, subject: subject}, nil
}

func (p *Publisher) Upload(_ context.Context, out model.Outcome) error {
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(p.subject)
	msg.Header.Set("Allocator-Job-Id", out.JobID)
	msg.Header.Set("Allocator-Status", out.Status.String())
	msg.Data = b
	if err := p.client.Conn().PublishMsg(msg); err != nil {
		return err
	}
	return p.client.Conn().FlushTimeout(5 * time.Second)
}

func (p *Publisher) Close() error {
	p.client.Close()
	return nil
}
