package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"farewatch/internal/domain"
	"farewatch/internal/storage/memory"
)

// recordingNotifier captures sent messages and can fail selectively.
type recordingNotifier struct {
	mu     sync.Mutex
	sent   []string
	failOn string // substring that triggers a send failure
}

func (n *recordingNotifier) Send(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOn != "" && strings.Contains(text, n.failOn) {
		return errors.New("send rejected")
	}
	n.sent = append(n.sent, text)
	return nil
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	alerts []domain.AlertRecord
}

func (b *recordingBroadcaster) BroadcastAlert(a domain.AlertRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alerts = append(b.alerts, a)
}

func alertFor(id, route string, price float64) domain.AlertRecord {
	origin, dest, _ := strings.Cut(route, "-")
	return domain.AlertRecord{
		AlertID:       id,
		Origin:        origin,
		Destination:   dest,
		FareID:        "fare-" + id,
		PreviousPrice: 10000,
		CurrentPrice:  price,
		DropPercent:   20,
		Currency:      "TRY",
		DedupeKey:     "key-" + id,
		CreatedAt:     time.Now().UnixMilli(),
	}
}

func newTestDispatcher(store *memory.AlertStore, n *recordingNotifier, b *recordingBroadcaster) *Dispatcher {
	opts := Options{
		Alerts:        store,
		Notifier:      n,
		Logger:        zerolog.Nop(),
		MaxRetries:    1,
		RetryInterval: time.Millisecond,
	}
	// Assign only when non-nil so a nil *recordingBroadcaster does not
	// become a non-nil interface holding a nil pointer.
	if b != nil {
		opts.Broadcaster = b
	}
	return New(opts)
}

func TestDispatch_DeliversAndMarks(t *testing.T) {
	store := memory.NewAlertStore()
	notifier := &recordingNotifier{}
	broadcaster := &recordingBroadcaster{}
	d := newTestDispatcher(store, notifier, broadcaster)
	ctx := context.Background()

	res := d.Dispatch(ctx, []domain.AlertRecord{alertFor("a1", "IST-JFK", 8000)})
	if res.Delivered != 1 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.sent))
	}
	if !strings.Contains(notifier.sent[0], "IST-JFK") {
		t.Errorf("message should name the route: %s", notifier.sent[0])
	}

	alerts, err := store.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(alerts) != 1 || !alerts[0].Delivered {
		t.Error("delivered alert should be persisted with delivered=true")
	}

	if len(broadcaster.alerts) != 1 {
		t.Errorf("expected 1 broadcast, got %d", len(broadcaster.alerts))
	}
}

func TestDispatch_FailurePersistsUndelivered(t *testing.T) {
	store := memory.NewAlertStore()
	notifier := &recordingNotifier{failOn: "IST-JFK"}
	d := newTestDispatcher(store, notifier, nil)
	ctx := context.Background()

	res := d.Dispatch(ctx, []domain.AlertRecord{alertFor("a1", "IST-JFK", 8000)})
	if res.Delivered != 0 || res.Failed != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(res.Errors))
	}

	// The alert row survives so dedupe still sees the key next tick.
	alerts, err := store.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 persisted alert, got %d", len(alerts))
	}
	if alerts[0].Delivered {
		t.Error("failed alert must stay undelivered")
	}
}

func TestDispatch_OneFailureDoesNotBlockOthers(t *testing.T) {
	store := memory.NewAlertStore()
	notifier := &recordingNotifier{failOn: "IST-JFK"}
	d := newTestDispatcher(store, notifier, nil)
	ctx := context.Background()

	res := d.Dispatch(ctx, []domain.AlertRecord{
		alertFor("a1", "IST-JFK", 8000),
		alertFor("a2", "IST-FRA", 3000),
		alertFor("a3", "IST-LHR", 4000),
	})
	if res.Delivered != 2 || res.Failed != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(notifier.sent) != 2 {
		t.Errorf("expected 2 notifications, got %d", len(notifier.sent))
	}
}

func TestDispatch_DuplicateAlertIDIsQuiet(t *testing.T) {
	store := memory.NewAlertStore()
	notifier := &recordingNotifier{}
	d := newTestDispatcher(store, notifier, nil)
	ctx := context.Background()

	a := alertFor("a1", "IST-JFK", 8000)
	if err := store.Insert(ctx, &a); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	res := d.Dispatch(ctx, []domain.AlertRecord{a})
	if res.Failed != 0 {
		t.Fatalf("re-dispatch of a persisted alert should not fail: %+v", res)
	}
	if len(notifier.sent) != 0 {
		t.Error("already persisted alert must not notify again")
	}
}

func TestDispatch_NilNotifierStillPersists(t *testing.T) {
	store := memory.NewAlertStore()
	d := New(Options{Alerts: store, Logger: zerolog.Nop()})
	ctx := context.Background()

	res := d.Dispatch(ctx, []domain.AlertRecord{alertFor("a1", "IST-JFK", 8000)})
	if res.Delivered != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	alerts, _ := store.ListRecent(ctx, 10)
	if len(alerts) != 1 || !alerts[0].Delivered {
		t.Error("alert should persist and mark delivered without a notifier")
	}
}

func TestFormatAlert(t *testing.T) {
	text := FormatAlert(domain.AlertRecord{
		Origin:        "IST",
		Destination:   "JFK",
		PreviousPrice: 10000,
		CurrentPrice:  8000,
		DropPercent:   20,
		ZScore:        2.5,
		Currency:      "TRY",
	})
	for _, want := range []string{"IST-JFK", "8000.00 TRY", "baseline 10000.00", "20.0%", "z-score 2.50"} {
		if !strings.Contains(text, want) {
			t.Errorf("message missing %q: %s", want, text)
		}
	}
}
