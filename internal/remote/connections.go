package remote

import (
	"fmt"
	"sync"
)

// Dialer resolves an agent name to a protocol client.
type Dialer func(agentName string) (Client, error)

// Connections manages the lifecycle of remote agent clients.
// GetClient is safe for concurrent use: multiple conversations may
// target the same agent simultaneously.
type Connections struct {
	// dial creates a client for an agent on first use.
	dial Dialer
	// clients caches live clients by agent name.
	clients map[string]Client
	// mu protects clients.
	mu sync.Mutex
}

// NewConnections creates a pool using the given dialer.
func NewConnections(dial Dialer) *Connections {
	return &Connections{
		dial:    dial,
		clients: make(map[string]Client),
	}
}

// GetClient returns the client for the named agent, dialing lazily on
// first use.
func (c *Connections) GetClient(agentName string) (Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[agentName]; ok {
		return client, nil
	}

	client, err := c.dial(agentName)
	if err != nil {
		return nil, fmt.Errorf("connect agent %s: %w", agentName, err)
	}
	c.clients[agentName] = client
	return client, nil
}

// Register installs a prebuilt client for an agent, replacing any
// cached one. Used for in-process agents and tests.
func (c *Connections) Register(agentName string, client Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[agentName] = client
}

// Close closes every cached client and clears the pool.
func (c *Connections) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for name, client := range c.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close client %s: %w", name, err)
		}
		delete(c.clients, name)
	}
	return firstErr
}
