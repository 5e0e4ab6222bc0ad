// Command agentmeshd runs a single AgentMesh node: a libp2p host, the
// gossipsub/DHT/identify/mDNS behaviours, the security admission layer,
// the trust aggregator, and the capability-card discovery service.
// Deliberately thin — a single -config flag, no subcommands. It is not
// "the CLI" (SPEC_FULL.md §2 scopes that out); an operator's shell
// wraps this binary the way systemd wraps the teacher's relay-server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/agentmesh/node/internal/config"
	"github.com/agentmesh/node/internal/identity"
	"github.com/agentmesh/node/internal/watchdog"
	"github.com/agentmesh/node/pkg/chain"
	"github.com/agentmesh/node/pkg/discovery"
	"github.com/agentmesh/node/pkg/router"
	"github.com/agentmesh/node/pkg/security"
	"github.com/agentmesh/node/pkg/swarm"
	"github.com/agentmesh/node/pkg/telemetry"
	"github.com/agentmesh/node/pkg/transport"
	"github.com/agentmesh/node/pkg/trust"
)

// Set via -ldflags at build time.
var version = "dev"

func main() {
	configPath := flag.String("config", "agentmesh.toml", "path to the node's TOML configuration file")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(*configPath); err != nil {
		slog.Error("agentmeshd exiting", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := security.ValidateNetworkConfig(cfg.Network.MaxConnections, cfg.Network.ListenAddresses); err != nil {
		return fmt.Errorf("invalid network config: %w", err)
	}
	if err := security.ValidateBootstrapPeers(cfg.Network.BootstrapPeers); err != nil {
		return fmt.Errorf("invalid bootstrap peers: %w", err)
	}

	id, err := identity.Load(cfg.Identity.KeyFile, cfg.Identity.DID)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	slog.Info("identity loaded", "peer_id", id.PeerID.String(), "did", id.DID)

	metrics := telemetry.New(version, "")

	guard := security.NewGuard(0, 0, 0, 0, metrics)

	host, err := transport.BuildHost(id.PrivateKey, transport.Options{
		ListenAddresses:    cfg.Network.ListenAddresses,
		Gater:              guard,
		EnableNATPortMap:   true,
		EnableHolePunching: true,
	})
	if err != nil {
		return fmt.Errorf("build host: %w", err)
	}
	defer host.Close()

	for _, addr := range host.Addrs() {
		slog.Info("listening", "addr", fmt.Sprintf("%s/p2p/%s", addr, host.ID()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// serverMode: a node with at least one configured listen address
	// participates in the DHT routing table rather than riding as a
	// client only (original_source's set_server_mode/set_client_mode).
	behavior, err := swarm.NewCombinedBehavior(ctx, host, len(cfg.Network.ListenAddresses) > 0)
	if err != nil {
		return fmt.Errorf("build swarm behaviour: %w", err)
	}

	driver := swarm.NewSwarmDriver(host, behavior)
	driverErrCh := make(chan error, 1)
	go func() { driverErrCh <- driver.Run(ctx) }()

	facade := swarm.NewNetworkFacade(host.ID(), driver.Commands())

	mdns := swarm.NewMDNSDiscovery(host, func(info peer.AddrInfo) {
		dialCtx, dialCancel := context.WithTimeout(ctx, 30*time.Second)
		defer dialCancel()
		if err := facade.Connect(dialCtx, info); err != nil {
			slog.Debug("mdns: dial failed", "peer", info.ID, "error", err)
		}
	})
	if err := mdns.Start(ctx); err != nil {
		slog.Warn("mdns: failed to start", "error", err)
	} else {
		defer mdns.Close()
	}

	registry, err := chain.NewEthClient(cfg.Blockchain.RPCURL, cfg.Blockchain.TrustRegistryAddress)
	if err != nil {
		return fmt.Errorf("build chain client: %w", err)
	}
	reputation, stake, endorsement := cfg.TrustWeights()
	weights := trust.Weights{Reputation: reputation, Stake: stake, Endorsement: endorsement}
	aggregator := trust.NewAggregator(registry, weights, trust.DefaultCacheTTL, metrics)

	disco := discovery.New(facade, metrics, host.ID().String())

	msgRouter := router.New(&gossipHandlers{discovery: disco, trust: aggregator})

	c := &core{facade: facade, discovery: disco, trust: aggregator}
	_ = c // wired for an (out-of-scope) API layer to import; SPEC_FULL.md §1/§6.

	go consumeEvents(ctx, driver, guard, metrics, msgRouter)

	dialBootstrapPeers(ctx, facade, cfg.Network.BootstrapPeers)

	watchdog.Ready()
	wd := watchdog.New()
	go wd.Run(ctx, watchdog.Config{Interval: 30 * time.Second, FailureThreshold: 3}, []watchdog.HealthCheck{
		{
			Name: "host-listening",
			Check: func() error {
				if len(host.Addrs()) == 0 {
					return fmt.Errorf("no listen addresses")
				}
				return nil
			},
		},
		{
			Name: "chain-breaker",
			Check: func() error {
				if aggregator.BreakerState() == trust.Open {
					return fmt.Errorf("trust chain circuit breaker is open")
				}
				return nil
			},
		},
	})

	slog.Info("agentmeshd running", "peer_id", host.ID().String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		slog.Info("shutdown signal received")
	case err := <-driverErrCh:
		if err != nil {
			slog.Error("swarm driver exited", "error", err)
		}
	}

	watchdog.Stopping()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := facade.Shutdown(shutdownCtx); err != nil {
		slog.Warn("facade shutdown", "error", err)
	}
	return nil
}

// consumeEvents drains the driver's event channel for as long as the node
// runs, feeding connectivity changes into the security guard's per-IP/
// subnet bookkeeping, gossip messages into the router, and both into
// telemetry. This is the single consumer of the driver's Events()
// channel; while it lags and the channel is full, the driver drops
// events rather than blocking.
func consumeEvents(ctx context.Context, driver *swarm.SwarmDriver, guard *security.Guard, metrics *telemetry.Metrics, msgRouter *router.Router) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-driver.Events():
			switch e := evt.(type) {
			case swarm.PeerConnected:
				metrics.ConnectedPeers.Inc()
			case swarm.PeerDisconnected:
				metrics.ConnectedPeers.Dec()
				if e.Addr != nil {
					guard.OnDisconnected(e.Addr)
				}
			case swarm.MessageReceived:
				outcome := msgRouter.Handle(e)
				result := "rejected"
				if outcome.Verdict == router.Accept {
					result = "accepted"
				} else if outcome.Verdict == router.Ignore {
					result = "ignored"
				}
				metrics.MessagesTotal.WithLabelValues(e.Topic, result).Inc()
			case swarm.RoutingUpdated:
				slog.Debug("routing table updated", "peer", e.Peer.String(), "removed", e.Removed)
			case swarm.ListenAddr:
				slog.Debug("listen address changed", "addr", e.Addr.String(), "removed", e.Removed)
			}
		}
	}
}

// dialBootstrapPeers connects to every configured bootstrap address,
// logging (not failing startup on) individual dial errors — a single
// unreachable bootstrap peer shouldn't keep the node from joining via
// the others or via mDNS.
func dialBootstrapPeers(ctx context.Context, facade *swarm.NetworkFacade, addrs []string) {
	for _, raw := range addrs {
		maddr, err := ma.NewMultiaddr(raw)
		if err != nil {
			slog.Warn("bootstrap: malformed multiaddr", "addr", raw, "error", err)
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			slog.Warn("bootstrap: no peer id in multiaddr", "addr", raw, "error", err)
			continue
		}
		dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = facade.Connect(dialCtx, *info)
		cancel()
		if err != nil {
			slog.Warn("bootstrap: dial failed", "peer", info.ID, "error", err)
			continue
		}
		slog.Info("bootstrap: connected", "peer", info.ID)
	}
}
