package swarm

import (
	"context"
	"crypto/rand"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/zeroconf/v2"
	ma "github.com/multiformats/go-multiaddr"
)

// MDNSServiceName is the DNS-SD service type used for LAN discovery.
const MDNSServiceName = "_agentmesh._udp"

const (
	mdnsDedupeInterval       = 30 * time.Second
	mdnsMaxConcurrentDials   = 5
	mdnsBrowseInterval       = 30 * time.Second
	mdnsBrowseTimeout        = 10 * time.Second
	dnsaddrPrefix            = "dnsaddr="
)

// MDNSDiscovery runs LAN peer discovery over mDNS/DNS-SD, adapted from
// the teacher's pkg/p2pnet/mdns.go: register our own addresses via
// zeroconf, then periodically re-browse for peers advertising the same
// service. Discovered peers are handed to dial, rather than dialed
// directly, so the caller can route them through the SwarmDriver's
// command channel and keep the single-writer invariant.
type MDNSDiscovery struct {
	host   host.Host
	server *zeroconf.Server
	dial   func(peer.AddrInfo)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	lastTry map[peer.ID]time.Time
	sem     chan struct{}
}

// NewMDNSDiscovery creates an mDNS discovery service. dial is invoked
// (from a worker goroutine, bounded by mdnsMaxConcurrentDials) for every
// newly discovered peer not recently attempted.
func NewMDNSDiscovery(h host.Host, dial func(peer.AddrInfo)) *MDNSDiscovery {
	return &MDNSDiscovery{
		host:    h,
		dial:    dial,
		lastTry: make(map[peer.ID]time.Time),
		sem:     make(chan struct{}, mdnsMaxConcurrentDials),
	}
}

// Start registers our service and begins the periodic browse loop.
func (md *MDNSDiscovery) Start(ctx context.Context) error {
	md.ctx, md.cancel = context.WithCancel(ctx)

	if err := md.startServer(); err != nil {
		return err
	}

	md.wg.Add(1)
	go md.browseLoop()
	return nil
}

// Close stops advertising and waits for in-flight dial attempts.
func (md *MDNSDiscovery) Close() error {
	md.cancel()
	if md.server != nil {
		md.server.Shutdown()
	}
	md.wg.Wait()
	return nil
}

func (md *MDNSDiscovery) startServer() error {
	interfaceAddrs, err := md.host.Network().InterfaceListenAddresses()
	if err != nil {
		return err
	}
	p2pAddrs, err := peer.AddrInfoToP2pAddrs(&peer.AddrInfo{
		ID:    md.host.ID(),
		Addrs: interfaceAddrs,
	})
	if err != nil {
		return err
	}

	var txts []string
	for _, addr := range p2pAddrs {
		txts = append(txts, dnsaddrPrefix+addr.String())
	}

	instance := randomInstanceName()
	server, err := zeroconf.Register(instance, MDNSServiceName, "local.", 4001, txts, nil)
	if err != nil {
		return err
	}
	md.server = server
	return nil
}

func (md *MDNSDiscovery) browseLoop() {
	defer md.wg.Done()

	select {
	case <-time.After(2 * time.Second):
	case <-md.ctx.Done():
		return
	}

	md.runBrowse()

	ticker := time.NewTicker(mdnsBrowseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-md.ctx.Done():
			return
		case <-ticker.C:
			md.runBrowse()
		}
	}
}

func (md *MDNSDiscovery) runBrowse() {
	browseCtx, cancel := context.WithTimeout(md.ctx, mdnsBrowseTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	if err := zeroconf.Browse(browseCtx, MDNSServiceName, "local.", entries); err != nil {
		if md.ctx.Err() == nil {
			slog.Debug("mdns: browse round failed", "error", err)
		}
		return
	}

	for entry := range entries {
		md.handleEntry(entry)
	}
}

func (md *MDNSDiscovery) handleEntry(entry *zeroconf.ServiceEntry) {
	for _, txt := range entry.Text {
		if !strings.HasPrefix(txt, dnsaddrPrefix) {
			continue
		}
		addr, err := ma.NewMultiaddr(txt[len(dnsaddrPrefix):])
		if err != nil {
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			continue
		}
		if info.ID == md.host.ID() {
			continue
		}
		md.maybeDial(*info)
	}
}

func (md *MDNSDiscovery) maybeDial(info peer.AddrInfo) {
	md.mu.Lock()
	if last, ok := md.lastTry[info.ID]; ok && time.Since(last) < mdnsDedupeInterval {
		md.mu.Unlock()
		return
	}
	md.lastTry[info.ID] = time.Now()
	md.mu.Unlock()

	select {
	case md.sem <- struct{}{}:
	default:
		return // at the concurrent-dial cap, skip this round
	}

	md.wg.Add(1)
	go func() {
		defer md.wg.Done()
		defer func() { <-md.sem }()
		md.dial(info)
	}()
}

func randomInstanceName() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	const hex = "0123456789abcdef"
	out := make([]byte, 16)
	for i, c := range b {
		out[i*2] = hex[c>>4]
		out[i*2+1] = hex[c&0xf]
	}
	return "agentmesh-" + string(out)
}
