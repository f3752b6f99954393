package sink

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
)

// DefaultSubject is the subject prefix records are published under.
const DefaultSubject = "time_line.records"

const flushTimeout = 5 * time.Second

// NATSPublisher publishes each record as JSON to
// "<subject>.<owner>.<repo>", or to "<subject>" when owner or repo is empty.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

func NewNATSPublisher(url, subject string, log *zap.Logger) (*NATSPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if subject == "" {
		subject = DefaultSubject
	}
	opts := []nats.Option{
		nats.Name("time-line"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

// Subject returns the subject a record is published to.
func (p *NATSPublisher) Subject(r model.Record) string {
	if r.Owner == "" || r.Repo == "" {
		return p.subject
	}
	return p.subject + "." + r.Owner + "." + r.Repo
}

func (p *NATSPublisher) Write(ctx context.Context, records []model.Record) error {
	if p.nc == nil || p.nc.IsClosed() {
		return errors.New("nats not connected")
	}
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if err := p.nc.Publish(p.Subject(r), data); err != nil {
			return err
		}
	}
	return p.nc.FlushTimeout(flushTimeout)
}

func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	err := p.nc.Drain()
	p.nc.Close()
	return err
}
