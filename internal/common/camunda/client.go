// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"birdwatch-support/internal/common/config"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client owns the Zeebe gRPC connection shared by every job worker.
type Client struct {
	client         zbc.Client
	gatewayAddress string
	checkTimeout   time.Duration
}

// Topology summarizes the broker cluster for readiness probes.
type Topology struct {
	Brokers    int
	Partitions int
	Version    string
}

// NewClient connects to the broker named in the camunda config block and
// checks its topology before returning.
func NewClient(cfg config.CamundaConfig) (*Client, error) {
	if cfg.BrokerAddress == "" {
		return nil, fmt.Errorf("camunda.broker_address is required")
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{
		client:         zeebeClient,
		gatewayAddress: cfg.BrokerAddress,
		checkTimeout:   10 * time.Second,
	}
	if rt := config.GetDuration(cfg.RequestTimeout); rt > 0 && rt < c.checkTimeout {
		c.checkTimeout = rt
	}

	if _, err := c.Topology(context.Background()); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", cfg.BrokerAddress, err)
	}
	return c, nil
}

// GetClient returns the raw Zeebe client for opening job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Topology asks the gateway for the current cluster layout.
func (c *Client) Topology(ctx context.Context) (*Topology, error) {
	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	resp, err := c.client.NewTopologyCommand().Send(ctx)
	if err != nil {
		return nil, mapZeebeError(err, "topology", 0)
	}

	t := &Topology{
		Brokers:    len(resp.GetBrokers()),
		Partitions: int(resp.GetPartitionsCount()),
		Version:    resp.GetGatewayVersion(),
	}
	return t, nil
}

// HealthCheck fails when the gateway is unreachable or reports no brokers.
func (c *Client) HealthCheck(ctx context.Context) error {
	t, err := c.Topology(ctx)
	if err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	if t.Brokers == 0 {
		return fmt.Errorf("zeebe health check failed: gateway %s reports no brokers", c.gatewayAddress)
	}
	return nil
}
