package swarm

import (
	"testing"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pb "github.com/libp2p/go-libp2p-pubsub/pb"
)

func TestAllTopicsReturnsFourWellKnownTopics(t *testing.T) {
	topics := AllTopics()
	if len(topics) != 4 {
		t.Fatalf("expected 4 topics, got %d", len(topics))
	}
	want := map[string]bool{
		TopicDiscovery: true, TopicCapability: true, TopicTrust: true, TopicDisputes: true,
	}
	for _, topic := range topics {
		if !want[topic] {
			t.Errorf("unexpected topic %q", topic)
		}
	}
}

func TestMessageIDIsDeterministicOnPayload(t *testing.T) {
	m1 := &pubsub.Message{Message: &pb.Message{Data: []byte("hello")}}
	m2 := &pubsub.Message{Message: &pb.Message{Data: []byte("hello")}}
	if messageID(m1) != messageID(m2) {
		t.Fatal("expected identical payloads to produce the same message ID")
	}
}

func TestMessageIDDiffersOnPayload(t *testing.T) {
	m1 := &pubsub.Message{Message: &pb.Message{Data: []byte("hello")}}
	m2 := &pubsub.Message{Message: &pb.Message{Data: []byte("world")}}
	if messageID(m1) == messageID(m2) {
		t.Fatal("expected distinct payloads to produce distinct message IDs")
	}
}

func TestPeerScoreParamsCoverEveryTopic(t *testing.T) {
	params := peerScoreParams()
	for _, topic := range AllTopics() {
		if _, ok := params.Topics[topic]; !ok {
			t.Errorf("missing TopicScoreParams for %s", topic)
		}
	}
}
