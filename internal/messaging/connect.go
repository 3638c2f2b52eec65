package messaging

import (
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Default subjects.
const (
	DefaultTriggerSubject = "ota.update"
	DefaultMetricsSubject = "ota.metrics"
	DefaultOutcomeSubject = "ota.outcome"
)

// Options configures the broker connection.
type Options struct {
	URL  string
	Name string

	// Authentication, all optional.
	User            string
	Password        string
	Token           string
	CredentialsFile string

	Timeout       time.Duration
	ReconnectWait time.Duration
	MaxReconnects int
}

// Connect opens a connection to the broker which reconnects in the background.
func Connect(opts Options) (*nats.Conn, error) {
	natsOpts := []nats.Option{
		nats.Name(opts.Name),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("Disconnected from broker", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("Reconnected to broker", slog.String("url", nc.ConnectedUrlRedacted()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}

			slog.Error("Broker error", slog.String("subject", subject), slog.Any("error", err))
		}),
	}

	if opts.Timeout > 0 {
		natsOpts = append(natsOpts, nats.Timeout(opts.Timeout))
	}

	if opts.ReconnectWait > 0 {
		natsOpts = append(natsOpts, nats.ReconnectWait(opts.ReconnectWait))
	}

	if opts.MaxReconnects != 0 {
		natsOpts = append(natsOpts, nats.MaxReconnects(opts.MaxReconnects))
	}

	switch {
	case opts.CredentialsFile != "":
		natsOpts = append(natsOpts, nats.UserCredentials(opts.CredentialsFile))
	case opts.Token != "":
		natsOpts = append(natsOpts, nats.Token(opts.Token))
	case opts.User != "":
		natsOpts = append(natsOpts, nats.UserInfo(opts.User, opts.Password))
	}

	return nats.Connect(opts.URL, natsOpts...)
}
