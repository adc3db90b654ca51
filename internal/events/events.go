package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/metal-toolbox/inventory/internal/metrics"
	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSubjectPrefix  = "inventory.assets"
	defaultConnectTimeout = 10 * time.Second
	reconnectWait         = 2 * time.Second
)

var ErrPublish = errors.New("event publish error")

// Publisher notifies subscribers of asset record changes.
type Publisher interface {
	Publish(ctx context.Context, event *model.AssetEvent) error
	Close() error
}

// Options configures the NATS publisher.
type Options struct {
	URL            string
	CredsFile      string
	SubjectPrefix  string
	ConnectTimeout time.Duration
}

// NATS publishes asset events as JSON on <prefix>.<kind> subjects.
type NATS struct {
	conn   *nats.Conn
	prefix string
	logger *logrus.Logger
}

// NewNATS connects to the NATS server at opts.URL.
func NewNATS(opts *Options, logger *logrus.Logger) (*NATS, error) {
	prefix := opts.SubjectPrefix
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	timeout := opts.ConnectTimeout
	if timeout == 0 {
		timeout = defaultConnectTimeout
	}

	natsOpts := []nats.Option{
		nats.Name(model.AppName),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("nats reconnected")
		}),
	}

	if opts.CredsFile != "" {
		natsOpts = append(natsOpts, nats.UserCredentials(opts.CredsFile))
	}

	conn, err := nats.Connect(opts.URL, natsOpts...)
	if err != nil {
		return nil, errors.Wrap(ErrPublish, "connect "+opts.URL+": "+err.Error())
	}

	return &NATS{conn: conn, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject events of kind are published on.
func (n *NATS) Subject(kind model.EventKind) string {
	return n.prefix + "." + string(kind)
}

// Publish implements the Publisher interface.
func (n *NATS) Publish(_ context.Context, event *model.AssetEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		registerPublish(event.Kind, "failed")
		return errors.Wrap(ErrPublish, err.Error())
	}

	if err := n.conn.Publish(n.Subject(event.Kind), b); err != nil {
		registerPublish(event.Kind, "failed")
		return errors.Wrap(ErrPublish, err.Error())
	}

	registerPublish(event.Kind, "published")

	n.logger.WithFields(logrus.Fields{
		"kind":     event.Kind,
		"hostname": event.Hostname,
	}).Trace("asset event published")

	return nil
}

// Close drains pending messages and closes the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}

func registerPublish(kind model.EventKind, result string) {
	metrics.EventsPublishedCounter.With(
		prometheus.Labels{"kind": string(kind), "result": result},
	).Inc()
}

// Noop discards events, it is used when no NATS server is configured.
type Noop struct{}

func (Noop) Publish(context.Context, *model.AssetEvent) error { return nil }

func (Noop) Close() error { return nil }
