package queue

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
)

func TestNewEventHeader(t *testing.T) {
	hdr := NewEventHeader(TopicAssetStored, WithTraceID("trace-1"), WithProducer("metastamp"))

	if hdr.Topic != TopicAssetStored {
		t.Errorf("topic = %q, want %q", hdr.Topic, TopicAssetStored)
	}

	if hdr.TraceID != "trace-1" || hdr.Producer != "metastamp" {
		t.Errorf("options not applied: %+v", hdr)
	}

	if hdr.Version != PayloadVersionV1 {
		t.Errorf("version = %q, want %q", hdr.Version, PayloadVersionV1)
	}

	if hdr.OccurredAt.IsZero() {
		t.Error("occurred_at should be set")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	env := Message[AssetStoredPayload]{
		Header: NewEventHeader(TopicAssetStored),
		Payload: AssetStoredPayload{
			Asset: AssetRef{
				AssetID:   "01J8TEST",
				Bucket:    "metastamp-assets",
				ObjectKey: "img/cat.png",
				AssetType: "image",
				Size:      42,
				Tags:      map[string]string{"user_id": "alice"},
			},
			Source:   "upload",
			FileName: "cat.png",
		},
	}

	data, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode[AssetStoredPayload](data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Header.Topic != TopicAssetStored {
		t.Errorf("topic = %q, want %q", got.Header.Topic, TopicAssetStored)
	}

	if got.Payload.Asset.AssetID != "01J8TEST" {
		t.Errorf("asset_id = %q, want 01J8TEST", got.Payload.Asset.AssetID)
	}

	if got.Payload.Asset.Tags["user_id"] != "alice" {
		t.Errorf("tags lost in round trip: %+v", got.Payload.Asset.Tags)
	}
}

func TestNewWatermillMessageMetadata(t *testing.T) {
	payload := FingerprintRequestedPayload{
		Asset: AssetRef{AssetID: "a1", ObjectKey: "audio/song.mp3", AssetType: "audio"},
		Force: true,
	}

	msg, err := NewWatermillMessage(TopicFingerprintRequested, payload,
		WithTraceID("t-9"), WithProducer("metastamp"))
	if err != nil {
		t.Fatalf("NewWatermillMessage: %v", err)
	}

	if msg.UUID == "" {
		t.Error("message UUID should be set")
	}

	if got := msg.Metadata.Get("topic"); got != TopicFingerprintRequested {
		t.Errorf("metadata topic = %q, want %q", got, TopicFingerprintRequested)
	}

	if msg.Metadata.Get("trace_id") != "t-9" || msg.Metadata.Get("producer") != "metastamp" {
		t.Errorf("metadata missing trace/producer: %v", msg.Metadata)
	}

	env, err := ParseFingerprintRequested(msg)
	if err != nil {
		t.Fatalf("ParseFingerprintRequested: %v", err)
	}

	if !env.Payload.Force {
		t.Error("force flag lost")
	}

	if env.Payload.Asset.ObjectKey != "audio/song.mp3" {
		t.Errorf("object_key = %q", env.Payload.Asset.ObjectKey)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	msg := message.NewMessage("id", []byte("{not json"))

	if _, err := ParseAssetStored(msg); err == nil {
		t.Error("expected error for malformed payload")
	}
}

// capturePublisher 记录发布到各主题的消息.
type capturePublisher struct {
	topics []string
	msgs   []*message.Message
}

func (p *capturePublisher) Publish(topic string, messages ...*message.Message) error {
	for _, m := range messages {
		p.topics = append(p.topics, topic)
		p.msgs = append(p.msgs, m)
	}

	return nil
}

func (p *capturePublisher) Close() error { return nil }

func TestPublishHelpersUseCanonicalTopics(t *testing.T) {
	pub := &capturePublisher{}

	if err := PublishFingerprintCompleted(pub, FingerprintCompletedPayload{
		Asset:         AssetRef{AssetID: "a2"},
		FingerprintID: "fp-1",
	}); err != nil {
		t.Fatalf("PublishFingerprintCompleted: %v", err)
	}

	if err := PublishFingerprintFailed(pub, FingerprintFailedPayload{
		Asset: AssetRef{AssetID: "a2"},
		Phase: "analyze",
		Error: "boom",
	}); err != nil {
		t.Fatalf("PublishFingerprintFailed: %v", err)
	}

	want := []string{TopicFingerprintCompleted, TopicFingerprintFailed}
	if len(pub.topics) != len(want) {
		t.Fatalf("published %d messages, want %d", len(pub.topics), len(want))
	}

	for i, topic := range want {
		if pub.topics[i] != topic {
			t.Errorf("topic[%d] = %q, want %q", i, pub.topics[i], topic)
		}
	}

	env, err := ParseFingerprintFailed(pub.msgs[1])
	if err != nil {
		t.Fatalf("ParseFingerprintFailed: %v", err)
	}

	if env.Payload.Phase != "analyze" || env.Payload.Error != "boom" {
		t.Errorf("failed payload = %+v", env.Payload)
	}
}
