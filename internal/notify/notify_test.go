package notify_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garnizeh/folio/internal/metrics"
	"github.com/garnizeh/folio/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestSharedChannelPerTable(t *testing.T) {
	hub := notify.NewHub()
	reg := notify.NewRegistry(hub, metrics.New())
	defer reg.Close()

	var a, b, other atomic.Int32
	unsubA, err := reg.Subscribe("projects", func(notify.ChangeEvent) { a.Add(1) })
	require.NoError(t, err)
	unsubB, err := reg.Subscribe("projects", func(notify.ChangeEvent) { b.Add(1) })
	require.NoError(t, err)
	unsubO, err := reg.Subscribe("members", func(notify.ChangeEvent) { other.Add(1) })
	require.NoError(t, err)
	defer unsubO()

	assert.Equal(t, 1, hub.Listeners("projects"), "consumers of one table share a channel")
	assert.Equal(t, 2, reg.Subscribers("projects"))
	assert.Equal(t, []string{"members", "projects"}, reg.Tables())

	require.NoError(t, hub.Publish(context.Background(), notify.ChangeEvent{Event: notify.Insert, Schema: "public", Table: "projects"}))
	waitFor(t, func() bool { return a.Load() == 1 && b.Load() == 1 })
	assert.Equal(t, int32(0), other.Load())

	unsubA()
	unsubA()
	assert.Equal(t, 1, hub.Listeners("projects"), "channel stays open while a consumer remains")

	unsubB()
	assert.Equal(t, 0, hub.Listeners("projects"), "last consumer tears the channel down")
	assert.Equal(t, []string{"members"}, reg.Tables())

	// a later subscriber opens a fresh channel
	unsubC, err := reg.Subscribe("projects", func(notify.ChangeEvent) {})
	require.NoError(t, err)
	assert.Equal(t, 3, hub.Opened())
	unsubC()
}

func TestCallbackReceivesEvent(t *testing.T) {
	hub := notify.NewHub()
	reg := notify.NewRegistry(hub, nil)
	defer reg.Close()

	got := make(chan notify.ChangeEvent, 1)
	unsub, err := reg.Subscribe("documents", func(ev notify.ChangeEvent) { got <- ev })
	require.NoError(t, err)
	defer unsub()

	want := notify.ChangeEvent{Event: notify.Delete, Schema: "public", Table: "documents"}
	require.NoError(t, hub.Publish(context.Background(), want))
	select {
	case ev := <-got:
		assert.Equal(t, want, ev)
	case <-time.After(2 * time.Second):
		t.Fatalf("callback not invoked")
	}
}

func TestUnsubscribeFromCallback(t *testing.T) {
	hub := notify.NewHub()
	reg := notify.NewRegistry(hub, nil)
	defer reg.Close()

	var calls atomic.Int32
	var unsub func()
	unsub, err := reg.Subscribe("reviews", func(notify.ChangeEvent) {
		calls.Add(1)
		unsub()
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, notify.ChangeEvent{Event: notify.Update, Table: "reviews"}))
	waitFor(t, func() bool { return hub.Listeners("reviews") == 0 })
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistryClose(t *testing.T) {
	hub := notify.NewHub()
	reg := notify.NewRegistry(hub, nil)

	unsub, err := reg.Subscribe("skills", func(notify.ChangeEvent) {})
	require.NoError(t, err)
	require.NoError(t, reg.Close())
	assert.Equal(t, 0, hub.Listeners("skills"))

	// releasing after close is harmless
	unsub()
	require.NoError(t, reg.Close())

	_, err = reg.Subscribe("skills", func(notify.ChangeEvent) {})
	assert.ErrorIs(t, err, notify.ErrClosed)
}

type failingSource struct{}

func (failingSource) Open(context.Context, string) (notify.Channel, error) {
	return nil, errors.New("broker down")
}

func TestSubscribeOpenFailure(t *testing.T) {
	reg := notify.NewRegistry(failingSource{}, nil)
	defer reg.Close()

	_, err := reg.Subscribe("projects", func(notify.ChangeEvent) {})
	require.Error(t, err)
	assert.Empty(t, reg.Tables())

	_, err = reg.Subscribe("projects", nil)
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	ev := notify.Decode(`{"event":"insert","schema":"app","table":"projects"}`, "public", "projects")
	assert.Equal(t, notify.ChangeEvent{Event: notify.Insert, Schema: "app", Table: "projects"}, ev)

	ev = notify.Decode("", "public", "members")
	assert.Equal(t, notify.ChangeEvent{Event: notify.Update, Schema: "public", Table: "members"}, ev)

	ev = notify.Decode("not json", "public", "members")
	assert.Equal(t, notify.Update, ev.Event)

	payload, err := notify.Encode(notify.ChangeEvent{Event: notify.Delete, Schema: "public", Table: "skills"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"delete","schema":"public","table":"skills"}`, payload)
	assert.Equal(t, "folio_projects", notify.ChannelName("folio_", "Projects"))
}
