// Command czrpc-echoserver is the sample server from SPEC_FULL.md's §3
// end-to-end scenarios: it serves rpc/rpctest.Tester over TCP, optionally
// wiring a shared Redis auth-token store, a Mongo call-audit log, Consul
// self-registration, and an NSQ connection-lifecycle event feed. Modeled
// on the teacher's cmd/gameserver main(): load config, best-effort bring
// up each infra client (logging and continuing on failure rather than
// exiting), serve, then shut down on signal.
package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/phuhao00/czrpc/config"
	"github.com/phuhao00/czrpc/internal/bus"
	"github.com/phuhao00/czrpc/internal/discovery"
	"github.com/phuhao00/czrpc/internal/idgen"
	"github.com/phuhao00/czrpc/internal/store"
	"github.com/phuhao00/czrpc/rpc"
	"github.com/phuhao00/czrpc/rpc/rpctest"
)

const serviceName = "czrpc-echoserver"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("%s starting...", serviceName)

	cfg := config.GetServerConfig()
	ids := idgen.New(1)

	registry := prometheus.NewRegistry()
	metrics := rpc.NewMetrics(registry)

	var tokenStore *store.RedisTokenStore
	if cfg.Redis.Addr != "" {
		ts, err := store.NewRedisTokenStore(cfg.Redis, 24*time.Hour)
		if err != nil {
			log.Printf("auth token store disabled: %v", err)
		} else {
			tokenStore = ts
			defer ts.Close()
			log.Println("auth token store connected to Redis")
		}
	}

	var auditLog *store.CallAuditLog
	if cfg.Mongo.URI != "" {
		al, err := store.NewCallAuditLog(cfg.Mongo)
		if err != nil {
			log.Printf("call audit log disabled: %v", err)
		} else {
			auditLog = al
			defer al.Disconnect(context.Background())
			log.Println("call audit log connected to Mongo")
		}
	}

	var publisher *bus.Publisher
	if cfg.NSQ.NSQDAddr != "" {
		p, err := bus.NewPublisher(cfg.NSQ)
		if err != nil {
			log.Printf("connection event bus disabled: %v", err)
		} else {
			publisher = p
			defer p.Stop()
			log.Println("connection event bus connected to NSQ")
		}
	}

	var reg *discovery.Registry
	serviceID := ids.NextSessionID()
	if cfg.Consul.Addr != "" {
		r, err := discovery.NewRegistry(cfg.Consul)
		if err != nil {
			log.Printf("service discovery disabled: %v", err)
		} else {
			reg = r
			host, port := splitHostPort(cfg.ListenAddr)
			name := cfg.Consul.ServiceName
			if name == "" {
				name = serviceName
			}
			if err := reg.Register(serviceID, name, host, port); err != nil {
				log.Printf("consul registration failed: %v", err)
			} else {
				log.Printf("registered with consul as %s", serviceID)
			}
		}
	}

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("listen on %s: %v", cfg.ListenAddr, err)
	}
	log.Printf("%s listening on %s", serviceName, cfg.ListenAddr)

	stopHeartbeat := make(chan struct{})
	if reg != nil {
		go passHeartbeat(reg, serviceID, stopHeartbeat)
	}

	// Announce our address over NSQ too, so a client with no Consul
	// access can discover us by subscribing instead of polling the
	// registry directly.
	publish(publisher, bus.ConnectionEvent{Kind: bus.EventAnnounced, SessionID: serviceID, Peer: cfg.ListenAddr, At: time.Now()})

	go acceptLoop(lis, cfg, ids, metrics, tokenStore, auditLog, publisher)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("shutting down %s...", serviceName)
	close(stopHeartbeat)
	_ = lis.Close()
	if reg != nil {
		if err := reg.Deregister(serviceID); err != nil {
			log.Printf("consul deregistration failed: %v", err)
		}
	}
	log.Printf("%s stopped", serviceName)
}

// passHeartbeat keeps reg's 15s TTL health check passing until stop fires,
// the way the teacher's infra clients pair a registration with a
// background keepalive rather than a one-shot Register call.
func passHeartbeat(reg *discovery.Registry, serviceID string, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := reg.Pass(serviceID); err != nil {
				log.Printf("consul TTL heartbeat failed: %v", err)
			}
		case <-stop:
			return
		}
	}
}

func acceptLoop(lis net.Listener, cfg *config.ServerConfig, ids *idgen.Generator, metrics *rpc.Metrics,
	tokenStore *store.RedisTokenStore, auditLog *store.CallAuditLog, publisher *bus.Publisher) {
	for {
		conn, err := lis.Accept()
		if err != nil {
			log.Printf("accept: %v", err)
			return
		}
		sessionID := ids.NextSessionID()
		go serveConn(conn, sessionID, cfg, metrics, tokenStore, auditLog, publisher)
	}
}

func serveConn(conn net.Conn, sessionID string, cfg *config.ServerConfig, metrics *rpc.Metrics,
	tokenStore *store.RedisTokenStore, auditLog *store.CallAuditLog, publisher *bus.Publisher) {
	tester := &rpctest.Tester{}
	c, err := rpc.NewConnection(conn, rpctest.TesterTable, tester)
	if err != nil {
		log.Printf("new connection for %s: %v", sessionID, err)
		_ = conn.Close()
		return
	}
	c.SetMetrics(metrics)

	if tokenStore != nil {
		c.ObjectData().UseAuthTokenStore(tokenStore, "czrpc:auth:"+sessionID)
	}
	if cfg.AuthToken != "" {
		c.ObjectData().SetAuthToken(cfg.AuthToken)
	}

	publish(publisher, bus.ConnectionEvent{Kind: bus.EventOpened, SessionID: sessionID, Peer: conn.RemoteAddr().String()})

	c.Start()
	<-c.Done()

	publish(publisher, bus.ConnectionEvent{Kind: bus.EventClosed, SessionID: sessionID, Peer: conn.RemoteAddr().String()})
	if auditLog != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := auditLog.Record(ctx, store.NewCallRecord(sessionID, "__connection")); err != nil {
			log.Printf("audit record for %s: %v", sessionID, err)
		}
		if recent, err := auditLog.Recent(ctx, sessionID, 10); err != nil {
			log.Printf("audit recent lookup for %s: %v", sessionID, err)
		} else {
			log.Printf("session %s audit trail: %d record(s)", sessionID, len(recent))
		}
		cancel()
	}
}

func publish(p *bus.Publisher, ev bus.ConnectionEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(ev); err != nil {
		log.Printf("publish connection event: %v", err)
	}
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port := 0
	for _, r := range portStr {
		if r < '0' || r > '9' {
			return host, 0
		}
		port = port*10 + int(r-'0')
	}
	return host, port
}
