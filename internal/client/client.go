package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/lxc/incus/v6/shared/api"

	otaapi "github.com/otaflow/ota-agent/api"
)

// Client talks to the agent API over its unix socket.
type Client struct {
	http *http.Client
	base string
}

// New returns a Client for the socket at socketPath.
func New(socketPath string) *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _ string, _ string) (net.Conn, error) {
					var d net.Dialer

					return d.DialContext(ctx, "unix", socketPath)
				},
			},
			Timeout: 30 * time.Second,
		},
		base: "http://ota-agent",
	}
}

// NewWithHTTP returns a Client using an existing HTTP client and base URL.
func NewWithHTTP(client *http.Client, base string) *Client {
	return &Client{http: client, base: base}
}

// UpdateStatus returns the update configuration and state.
func (c *Client) UpdateStatus(ctx context.Context) (*otaapi.UpdateStatus, error) {
	resp, err := c.query(ctx, http.MethodGet, "/1.0/update")
	if err != nil {
		return nil, err
	}

	status := &otaapi.UpdateStatus{}

	err = resp.MetadataAsStruct(status)
	if err != nil {
		return nil, err
	}

	return status, nil
}

// TriggerCheck starts an update cycle.
//
// api.StatusErrorCheck(err, http.StatusConflict) is true if a cycle was already running.
func (c *Client) TriggerCheck(ctx context.Context) error {
	_, err := c.query(ctx, http.MethodPost, "/1.0/update/:check")

	return err
}

func (c *Client) query(ctx context.Context, method string, path string) (*api.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return nil, err
	}

	// Send the request
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() { _ = resp.Body.Close() }()

	// Decode the response
	decoder := json.NewDecoder(resp.Body)
	response := api.Response{}

	err = decoder.Decode(&response)
	if err != nil {
		// Check the return value for a cleaner error
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("failed to fetch %s: %s", resp.Request.URL.String(), resp.Status)
		}

		return nil, err
	}

	// Handle errors
	if response.Type == api.ErrorResponse {
		return &response, api.StatusErrorf(resp.StatusCode, "%v", response.Error)
	}

	return &response, nil
}
