package precondition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/beevik/ntp"
)

// MinPlausibleTime is the earliest wall-clock time considered synchronized.
var MinPlausibleTime = time.Unix(1000000000, 0)

// ErrNoConnectivity is returned when no usable network interface is configured.
var ErrNoConnectivity = errors.New("no network connectivity")

// ErrClockNotSynced is returned when the wall clock is before MinPlausibleTime.
var ErrClockNotSynced = errors.New("system clock isn't synchronized")

// ErrClockSkew is returned when the wall clock is too far off the NTP server.
var ErrClockSkew = errors.New("system clock offset too large")

// Checker verifies that an update cycle can safely start.
type Checker struct {
	minTime   time.Time
	ntpServer string
	maxOffset time.Duration

	now        func() time.Time
	queryNTP   func(server string) (*ntp.Response, error)
	hasNetwork func() (bool, error)
}

// Option customizes a Checker.
type Option func(*Checker)

// WithNTP enables an NTP offset check against server.
func WithNTP(server string, maxOffset time.Duration) Option {
	return func(c *Checker) {
		c.ntpServer = server
		c.maxOffset = maxOffset
	}
}

// WithMinTime overrides MinPlausibleTime.
func WithMinTime(t time.Time) Option {
	return func(c *Checker) {
		c.minTime = t
	}
}

// NewChecker returns a Checker.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		minTime:    MinPlausibleTime,
		now:        time.Now,
		queryNTP:   queryNTP,
		hasNetwork: hasNetwork,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Check returns an error if the network is down or the clock can't be trusted.
func (c *Checker) Check(ctx context.Context) error {
	// Check network connectivity.
	ok, err := c.hasNetwork()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoConnectivity, err)
	}

	if !ok {
		return ErrNoConnectivity
	}

	// Certificate validation is meaningless with an unset clock.
	now := c.now()
	if now.Before(c.minTime) {
		return fmt.Errorf("%w: current time is %s", ErrClockNotSynced, now.UTC().Format(time.RFC3339))
	}

	if c.ntpServer == "" {
		return nil
	}

	resp, err := c.queryNTP(c.ntpServer)
	if err == nil {
		err = resp.Validate()
	}

	if err != nil {
		// An unreachable time server doesn't block updates once the clock looks sane.
		slog.WarnContext(ctx, "Unable to query NTP server", slog.String("server", c.ntpServer), slog.Any("error", err))

		return nil
	}

	offset := resp.ClockOffset.Abs()
	if c.maxOffset > 0 && offset > c.maxOffset {
		return fmt.Errorf("%w: %s off from %s", ErrClockSkew, offset, c.ntpServer)
	}

	return nil
}

func queryNTP(server string) (*ntp.Response, error) {
	return ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: 5 * time.Second})
}

func hasNetwork() (bool, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if ok && ipNet.IP.IsGlobalUnicast() {
				return true, nil
			}
		}
	}

	return false, nil
}
