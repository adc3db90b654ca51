package collector

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrNoAttempts = errors.New("no collection attempts left")

// Sender delivers a snapshot to the ingest service.
type Sender interface {
	Send(ctx context.Context, snapshot *model.Snapshot) (*model.APIResponse, error)
}

// Agent runs the collection and delivers its snapshot.
//
// When a delivery fails with an error Retryable reports true, the whole
// collection runs again after a backoff, up to Attempts runs.
type Agent struct {
	Builder   *Builder
	Sender    Sender
	Attempts  int
	Retryable func(error) bool
	Backoff   *backoff.Backoff
	Logger    *logrus.Logger
}

// Run collects and sends the snapshot, it returns the response of the accepted delivery.
func (a *Agent) Run(ctx context.Context) (*model.APIResponse, error) {
	attempts := a.Attempts
	if attempts < 1 {
		attempts = 1
	}

	bo := a.Backoff
	if bo == nil {
		bo = &backoff.Backoff{Min: 2 * time.Second, Max: time.Minute, Factor: 2, Jitter: true}
	}

	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		snapshot := a.Builder.BuildSnapshot(ctx)

		var resp *model.APIResponse

		resp, err = a.Sender.Send(ctx, snapshot)
		if err == nil {
			a.Logger.WithFields(logrus.Fields{
				"hostname": resp.Hostname,
				"attempt":  attempt,
				"message":  resp.Message,
			}).Info("inventory delivered")

			return resp, nil
		}

		le := a.Logger.WithError(err).WithFields(logrus.Fields{
			"hostname": snapshot.Hostname,
			"attempt":  attempt,
			"attempts": attempts,
		})

		if a.Retryable == nil || !a.Retryable(err) || attempt == attempts {
			le.Error("inventory delivery failed")
			return nil, err
		}

		wait := bo.Duration()
		le.WithField("retry_in", wait.String()).Warn("inventory delivery failed, collecting again")

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), err.Error())
		case <-time.After(wait):
		}
	}

	return nil, errors.Wrap(ErrNoAttempts, err.Error())
}
