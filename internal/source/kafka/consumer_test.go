package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"

	"github.com/kailas-cloud/brokerdex/internal/metrics"
)

func consumed(result string) float64 {
	return testutil.ToFloat64(metrics.ConsumerMessagesTotal.WithLabelValues(result))
}

// fakeReader serves queued messages, then blocks until ctx is canceled.
type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	closed    bool
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		wantName string
		wantUID  string
	}{
		{"pair", `["start", {"uid": "u1", "time": 1514826000.5}]`, "start", "u1"},
		{"other name", `["stop", {"uid": "u2"}]`, "stop", "u2"},
		{"bare document", `  {"uid": "u3"}`, "start", "u3"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			name, doc, err := Decode([]byte(tc.value))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if name != tc.wantName || doc["uid"] != tc.wantUID {
				t.Errorf("Decode = %q, %v", name, doc)
			}
		})
	}
}

func TestDecode_KeepsNumbers(t *testing.T) {
	_, doc, err := Decode([]byte(`["start", {"scan_id": 12, "time": 1514826000.5}]`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc["scan_id"] != json.Number("12") || doc["time"] != json.Number("1514826000.5") {
		t.Errorf("doc = %#v", doc)
	}
}

func TestDecode_Errors(t *testing.T) {
	for _, value := range []string{
		``,
		`not json`,
		`null`,
		`["start"]`,
		`["start", {}, {}]`,
		`[1, {}]`,
		`["start", [1, 2]]`,
		`["start", null]`,
	} {
		if _, _, err := Decode([]byte(value)); err == nil {
			t.Errorf("Decode(%q) expected error", value)
		}
	}
}

func newTestConsumer(r messageReader, h Handler) *Consumer {
	c := newConsumer(r, h, nil)
	c.delay, c.maxDelay = time.Millisecond, 2*time.Millisecond
	return c
}

func TestConsumer_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &fakeReader{
		cancel: cancel,
		msgs: []kafka.Message{
			{Offset: 1, Value: []byte(`["start", {"uid": "a"}]`)},
			{Offset: 2, Value: []byte(`garbage`)},
			{Offset: 3, Value: []byte(`["start", {"uid": "flaky"}]`)},
			{Offset: 4, Value: []byte(`{"uid": "b"}`)},
		},
	}

	handledBefore, skippedBefore, failedBefore :=
		consumed(metrics.ResultHandled), consumed(metrics.ResultUndecodable), consumed(metrics.ResultFailed)

	var handled []string
	flakyCalls := 0
	c := newTestConsumer(r, func(_ context.Context, name string, doc map[string]any) error {
		uid, _ := doc["uid"].(string)
		if uid == "flaky" {
			flakyCalls++
			if flakyCalls < 3 {
				return errors.New("index unavailable")
			}
		}
		handled = append(handled, name+":"+uid)
		return nil
	})

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"start:a", "start:flaky", "start:b"}
	if len(handled) != len(want) {
		t.Fatalf("handled = %v, want %v", handled, want)
	}
	for i := range want {
		if handled[i] != want[i] {
			t.Errorf("handled = %v, want %v", handled, want)
		}
	}
	wantOffsets := []int64{1, 2, 3, 4}
	if len(r.committed) != len(wantOffsets) {
		t.Fatalf("committed = %v, want %v", r.committed, wantOffsets)
	}
	for i := range wantOffsets {
		if r.committed[i] != wantOffsets[i] {
			t.Errorf("committed = %v, want %v", r.committed, wantOffsets)
		}
	}

	if got := consumed(metrics.ResultHandled) - handledBefore; got != 3 {
		t.Errorf("handled counter delta = %v, want 3", got)
	}
	if got := consumed(metrics.ResultUndecodable) - skippedBefore; got != 1 {
		t.Errorf("undecodable counter delta = %v, want 1", got)
	}
	if got := consumed(metrics.ResultFailed) - failedBefore; got != 2 {
		t.Errorf("failed counter delta = %v, want 2", got)
	}

	if err := c.Close(); err != nil || !r.closed {
		t.Errorf("Close = %v, closed = %v", err, r.closed)
	}
}

func TestConsumer_FailingMessageBlocksLaterCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &fakeReader{
		cancel: cancel,
		msgs: []kafka.Message{
			{Offset: 1, Value: []byte(`{"uid": "a"}`)},
			{Offset: 2, Value: []byte(`{"uid": "down"}`)},
			{Offset: 3, Value: []byte(`{"uid": "b"}`)},
		},
	}

	var handled []string
	attempts := 0
	c := newTestConsumer(r, func(_ context.Context, _ string, doc map[string]any) error {
		uid, _ := doc["uid"].(string)
		if uid == "down" {
			attempts++
			if attempts == 4 {
				cancel()
			}
			return errors.New("index unavailable")
		}
		handled = append(handled, uid)
		return nil
	})

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
	if len(handled) != 1 || handled[0] != "a" {
		t.Errorf("handled = %v, later messages must wait", handled)
	}
	if len(r.committed) != 1 || r.committed[0] != 1 {
		t.Errorf("committed = %v, want [1]", r.committed)
	}
	if len(r.msgs) != 1 {
		t.Errorf("fetched past the failing message: %d left", len(r.msgs))
	}
}

func TestConsumer_FetchError(t *testing.T) {
	boom := errors.New("broker down")
	r := &errReader{err: boom}
	c := newConsumer(r, nil, nil)
	if err := c.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected fetch error, got %v", err)
	}
}

type errReader struct{ err error }

func (r *errReader) FetchMessage(context.Context) (kafka.Message, error) {
	return kafka.Message{}, r.err
}
func (r *errReader) CommitMessages(context.Context, ...kafka.Message) error { return nil }
func (r *errReader) Close() error                                           { return nil }

func TestNewConsumer_Validates(t *testing.T) {
	if _, err := NewConsumer(Config{Topic: "starts"}, nil, nil); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewConsumer(Config{Brokers: []string{"localhost:9092"}}, nil, nil); err == nil {
		t.Error("expected error without topic")
	}
}
