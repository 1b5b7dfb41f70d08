// Package discovery registers the sample czrpc echo server with Consul
// and resolves it from the sample client, grounded on the teacher's
// infra/consul client.
package discovery

import (
	"fmt"

	"github.com/hashicorp/consul/api"

	"github.com/phuhao00/czrpc/config"
)

// Registry wraps a Consul API client, narrowed to service
// registration/lookup — the operations the echo sample actually needs.
type Registry struct {
	client *api.Client
}

// NewRegistry dials Consul the way the teacher's consulx.NewConsulClient
// does.
func NewRegistry(cfg config.ConsulConfig) (*Registry, error) {
	apiCfg := api.DefaultConfig()
	if cfg.Addr != "" {
		apiCfg.Address = cfg.Addr
	}
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: new consul client: %w", err)
	}
	return &Registry{client: client}, nil
}

// Register advertises one instance of the echo server under
// cfg.ServiceName, with id distinguishing it from sibling instances (the
// sample server uses its idgen-produced session id).
func (r *Registry) Register(id, serviceName, address string, port int) error {
	reg := &api.AgentServiceRegistration{
		ID:      id,
		Name:    serviceName,
		Address: address,
		Port:    port,
		Check: &api.AgentServiceCheck{
			TTL:                            "15s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	if err := r.client.Agent().ServiceRegister(reg); err != nil {
		return fmt.Errorf("discovery: register service %s: %w", id, err)
	}
	return nil
}

// Deregister removes the registration created by Register; called during
// graceful shutdown.
func (r *Registry) Deregister(id string) error {
	if err := r.client.Agent().ServiceDeregister(id); err != nil {
		return fmt.Errorf("discovery: deregister service %s: %w", id, err)
	}
	return nil
}

// Pass reports the TTL health check as passing, keeping the registration
// alive; the sample server calls this on a periodic heartbeat.
func (r *Registry) Pass(id string) error {
	return r.client.Agent().PassTTL("service:"+id, "")
}

// Endpoint is one resolved, healthy instance of a service.
type Endpoint struct {
	ID      string
	Address string
	Port    int
}

// Resolve returns every healthy instance of serviceName — the client
// sample uses this instead of a hardcoded server address.
func (r *Registry) Resolve(serviceName string) ([]Endpoint, error) {
	entries, _, err := r.client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolve service %s: %w", serviceName, err)
	}
	out := make([]Endpoint, 0, len(entries))
	for _, e := range entries {
		if e.Service == nil {
			continue
		}
		addr := e.Service.Address
		if addr == "" && e.Node != nil {
			addr = e.Node.Address
		}
		out = append(out, Endpoint{ID: e.Service.ID, Address: addr, Port: e.Service.Port})
	}
	return out, nil
}
