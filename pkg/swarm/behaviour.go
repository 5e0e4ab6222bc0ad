package swarm

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/protocol/identify"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	record "github.com/libp2p/go-libp2p-record"
	"github.com/multiformats/go-multihash"

	"github.com/agentmesh/node/internal/apperrors"
)

// Gossipsub mesh and scoring parameters, copied exactly from
// original_source/node/src/network/behaviour.rs so the Go node's gossip
// behaviour matches the original's bit for bit.
const (
	meshD     = 4
	meshDlo   = 2
	meshDhi   = 8
	meshDlazy = 3

	heartbeatInterval = 10 * time.Second
	fanoutTTL         = 60 * time.Second
	maxTransmitSize   = 65536

	scoreAppSpecificWeight          = 1.0
	scoreIPColocationFactorWeight   = -50.0
	scoreIPColocationFactorThreshold = 3.0
	scoreBehaviourPenaltyWeight     = -10.0
	scoreBehaviourPenaltyThreshold  = 5.0
	scoreBehaviourPenaltyDecay      = 0.9
	scoreDecayInterval              = 60 * time.Second
	scoreDecayToZero                = 0.01
	scoreRetainScore                = time.Hour

	topicWeight                       = 1.0
	topicTimeInMeshWeight             = 0.1
	topicTimeInMeshQuantum            = 60 * time.Second
	topicTimeInMeshCap                = 10.0
	topicFirstMessageDeliveriesWeight = 1.0
	topicFirstMessageDeliveriesDecay  = 0.9
	topicFirstMessageDeliveriesCap    = 100.0
	topicMeshMessageDeliveriesWeight     = -0.5
	topicMeshMessageDeliveriesDecay      = 0.9
	topicMeshMessageDeliveriesCap        = 100.0
	topicMeshMessageDeliveriesThreshold  = 10.0
	topicMeshMessageDeliveriesWindow     = 5 * time.Second
	topicMeshMessageDeliveriesActivation = 60 * time.Second
	topicMeshFailurePenaltyWeight        = -5.0
	topicMeshFailurePenaltyDecay         = 0.9
	topicInvalidMessageDeliveriesWeight  = -100.0
	topicInvalidMessageDeliveriesDecay   = 0.5

	thresholdGossip              = -1000.0
	thresholdPublish              = -5000.0
	thresholdGraylist             = -10000.0
	thresholdAcceptPX             = 10.0
	thresholdOpportunisticGraft   = 5.0

	identifyPushInterval = 300 * time.Second

	dhtQueryTimeout       = 60 * time.Second
	dhtRecordTTL          = time.Hour
	dhtPublishInterval    = 10 * time.Minute
	dhtProviderRecordTTL  = time.Hour
)

// CombinedBehavior bundles the four protocol behaviours the node runs on
// top of a single libp2p host: gossipsub for the pub/sub topics, the
// Kademlia DHT for record storage and peer routing, identify for peer
// metadata exchange, and mDNS for LAN discovery (built separately in
// mdns.go since it has no corresponding "behaviour" object — it just
// feeds discovered peers to the driver's Dial command).
type CombinedBehavior struct {
	PubSub   *pubsub.PubSub
	DHT      *dht.IpfsDHT
	Identify *identify.IDService

	Topics map[string]*pubsub.Topic
}

// messageID hashes the message payload to a stable identifier, matching
// the original's custom message_id_fn (behaviour.rs) which hashes
// message.data rather than using the default (source, sequence number)
// identity — this makes identical payloads from different publishers
// dedupe as the same gossip message. The id is the first 64 bits of the
// payload's SHA-256 digest, as a decimal string.
func messageID(m *pubsub.Message) string {
	digest := multihashSum(m.Data)[2:] // strip the multihash code/length prefix
	return strconv.FormatUint(binary.BigEndian.Uint64(digest[:8]), 10)
}

func multihashSum(data []byte) []byte {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		// multihash.Sum only fails for unsupported codes/lengths, neither
		// of which applies to a fixed SHA2_256 digest.
		panic(fmt.Sprintf("swarm: hashing gossip message: %v", err))
	}
	return sum
}

func peerScoreParams() *pubsub.PeerScoreParams {
	params := &pubsub.PeerScoreParams{
		AppSpecificScore:            func(peer.ID) float64 { return 0 },
		AppSpecificWeight:           scoreAppSpecificWeight,
		IPColocationFactorWeight:    scoreIPColocationFactorWeight,
		IPColocationFactorThreshold: scoreIPColocationFactorThreshold,
		BehaviourPenaltyWeight:      scoreBehaviourPenaltyWeight,
		BehaviourPenaltyThreshold:   scoreBehaviourPenaltyThreshold,
		BehaviourPenaltyDecay:       scoreBehaviourPenaltyDecay,
		DecayInterval:               scoreDecayInterval,
		DecayToZero:                 scoreDecayToZero,
		RetainScore:                 scoreRetainScore,
		Topics:                      make(map[string]*pubsub.TopicScoreParams),
	}
	for _, topic := range AllTopics() {
		params.Topics[topic] = &pubsub.TopicScoreParams{
			TopicWeight:                     topicWeight,
			TimeInMeshWeight:                topicTimeInMeshWeight,
			TimeInMeshQuantum:               topicTimeInMeshQuantum,
			TimeInMeshCap:                   topicTimeInMeshCap,
			FirstMessageDeliveriesWeight:    topicFirstMessageDeliveriesWeight,
			FirstMessageDeliveriesDecay:     topicFirstMessageDeliveriesDecay,
			FirstMessageDeliveriesCap:       topicFirstMessageDeliveriesCap,
			MeshMessageDeliveriesWeight:     topicMeshMessageDeliveriesWeight,
			MeshMessageDeliveriesDecay:      topicMeshMessageDeliveriesDecay,
			MeshMessageDeliveriesCap:        topicMeshMessageDeliveriesCap,
			MeshMessageDeliveriesThreshold:  topicMeshMessageDeliveriesThreshold,
			MeshMessageDeliveriesWindow:     topicMeshMessageDeliveriesWindow,
			MeshMessageDeliveriesActivation: topicMeshMessageDeliveriesActivation,
			MeshFailurePenaltyWeight:        topicMeshFailurePenaltyWeight,
			MeshFailurePenaltyDecay:         topicMeshFailurePenaltyDecay,
			InvalidMessageDeliveriesWeight:  topicInvalidMessageDeliveriesWeight,
			InvalidMessageDeliveriesDecay:   topicInvalidMessageDeliveriesDecay,
		}
	}
	return params
}

func peerScoreThresholds() *pubsub.PeerScoreThresholds {
	return &pubsub.PeerScoreThresholds{
		GossipThreshold:             thresholdGossip,
		PublishThreshold:            thresholdPublish,
		GraylistThreshold:           thresholdGraylist,
		AcceptPXThreshold:           thresholdAcceptPX,
		OpportunisticGraftThreshold: thresholdOpportunisticGraft,
	}
}

// NewCombinedBehavior builds gossipsub, the DHT, and identify atop h, and
// joins every well-known topic. serverMode controls whether the DHT
// advertises itself as a routing-table participant (reachable nodes) or
// stays a client (original_source's set_server_mode/set_client_mode).
func NewCombinedBehavior(ctx context.Context, h host.Host, serverMode bool) (*CombinedBehavior, error) {
	gsParams := pubsub.DefaultGossipSubParams()
	gsParams.D = meshD
	gsParams.Dlo = meshDlo
	gsParams.Dhi = meshDhi
	gsParams.Dlazy = meshDlazy
	gsParams.HeartbeatInterval = heartbeatInterval
	gsParams.FanoutTTL = fanoutTTL

	ps, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithGossipSubParams(gsParams),
		pubsub.WithMessageIdFn(messageID),
		pubsub.WithPeerScore(peerScoreParams(), peerScoreThresholds()),
		pubsub.WithMaxMessageSize(maxTransmitSize),
		pubsub.WithValidateQueueSize(128),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetwork, "construct gossipsub", err)
	}

	dhtMode := dht.ModeClient
	if serverMode {
		dhtMode = dht.ModeServer
	}
	kad, err := dht.New(ctx, h,
		dht.ProtocolPrefix("/agoramesh"),
		dht.Mode(dhtMode),
		dht.Validator(record.NamespacedValidator{
			dhtNamespace: RecordValidator{},
		}),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetwork, "construct DHT", err)
	}

	idService, err := identify.NewIDService(h,
		identify.ProtocolVersion(ProtocolVersion),
		identify.WithPushListenAddrUpdates(true),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetwork, "construct identify service", err)
	}

	cb := &CombinedBehavior{
		PubSub:   ps,
		DHT:      kad,
		Identify: idService,
		Topics:   make(map[string]*pubsub.Topic),
	}

	for _, name := range AllTopics() {
		topic, err := ps.Join(name)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindNetwork, fmt.Sprintf("join topic %s", name), err)
		}
		cb.Topics[name] = topic
	}

	return cb, nil
}

// Close tears down the DHT and identify service. Gossipsub itself has no
// explicit Close; it shuts down when the host closes.
func (cb *CombinedBehavior) Close() error {
	if err := cb.DHT.Close(); err != nil {
		return apperrors.Wrap(apperrors.KindNetwork, "close DHT", err)
	}
	cb.Identify.Close()
	return nil
}
