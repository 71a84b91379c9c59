package natspub

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/RepoWarden/internal/port/notifier"
)

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Publisher {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	p, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := p.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return p
}

func TestPublisher_Emit(t *testing.T) {
	p := testConnect(t)
	ctx := context.Background()

	subject := "executions.completed"
	want := notifier.Event{
		Subject:  subject,
		ID:       "test-" + t.Name(),
		Name:     "repo-scanner",
		RepoRoot: "/tmp/repo",
		Status:   "completed",
	}

	// Ephemeral consumer on the stream to observe the published event.
	cons, err := p.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		t.Fatalf("consumer: %v", err)
	}

	if err := p.Emit(ctx, want); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	msgs, err := cons.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	for msg := range msgs.Messages() {
		var got notifier.Event
		if err := json.Unmarshal(msg.Data(), &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.ID != want.ID || got.Name != want.Name || got.Status != want.Status {
			t.Fatalf("got %+v, want %+v", got, want)
		}
		_ = msg.Ack()
		return
	}
	if err := msgs.Error(); err != nil {
		t.Fatalf("messages: %v", err)
	}
	t.Fatal("no message received")
}

func TestPublisher_Name(t *testing.T) {
	p := &Publisher{}
	if p.Name() != "nats" {
		t.Fatalf("Name = %q", p.Name())
	}
}
