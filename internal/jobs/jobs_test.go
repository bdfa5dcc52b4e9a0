package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	dbfiles "github.com/garnizeh/folio/db"
	"github.com/garnizeh/folio/internal/db"
	"github.com/garnizeh/folio/internal/jobs"
	"github.com/garnizeh/folio/internal/models"
	"github.com/garnizeh/folio/pkg/repository"
	"github.com/garnizeh/folio/pkg/repository/mock"
)

func setupRepo(t *testing.T) *jobs.Repository {
	t.Helper()
	ctx := context.Background()
	d, err := db.New(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()), nil)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	d.GetConn().SetMaxOpenConns(1)
	t.Cleanup(func() { d.Close() })
	if err := db.Migrate(ctx, d, dbfiles.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return jobs.NewRepository(d)
}

func newPool(repo *jobs.Repository, handlers map[string]jobs.Handler) *jobs.WorkerPool {
	pool := jobs.NewWorkerPool(repo, handlers, nil, 1)
	pool.PollInterval = 10 * time.Millisecond
	pool.Backoff = func(int) time.Duration { return 0 }
	return pool
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestEnqueueAndProcess(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	handled := make(chan string, 1)
	pool := newPool(repo, map[string]jobs.Handler{
		"test": func(ctx context.Context, j *jobs.Job) error {
			var p map[string]string
			if err := json.Unmarshal(j.Payload, &p); err != nil {
				return err
			}
			handled <- p["foo"]
			return nil
		},
	})
	pool.Start(ctx)
	defer pool.Stop()

	id, err := pool.Enqueue(ctx, "test", map[string]string{"foo": "bar"}, 10, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case got := <-handled:
		if got != "bar" {
			t.Fatalf("expected payload bar, got %q", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("handler was not called")
	}

	waitFor(t, func() bool {
		j, err := repo.Get(ctx, id)
		return err == nil && j.Status == jobs.StatusDone
	})
}

func TestFetchNextClaimsOnce(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	low, err := repo.Enqueue(ctx, &jobs.Job{Type: "a", Payload: []byte(`{}`), Priority: 100})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	high, err := repo.Enqueue(ctx, &jobs.Job{Type: "b", Payload: []byte(`{}`), Priority: 1})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	first, err := repo.FetchNext(ctx)
	if err != nil || first == nil {
		t.Fatalf("expected a job, got %v %v", first, err)
	}
	if first.ID != high || first.Status != jobs.StatusRunning {
		t.Fatalf("expected high priority job %d running, got %+v", high, first)
	}
	second, err := repo.FetchNext(ctx)
	if err != nil || second == nil || second.ID != low {
		t.Fatalf("expected job %d, got %+v %v", low, second, err)
	}
	none, err := repo.FetchNext(ctx)
	if err != nil || none != nil {
		t.Fatalf("expected no job, got %+v %v", none, err)
	}
}

func TestFetchNextSkipsFutureRetry(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	id, err := repo.Enqueue(ctx, &jobs.Job{Type: "a", Payload: []byte(`{}`)})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	j, _ := repo.FetchNext(ctx)
	later := time.Now().Add(time.Hour)
	j.Status = jobs.StatusRetry
	j.Attempts = 1
	j.NextTryAt = &later
	if err := repo.UpdateJob(ctx, j); err != nil {
		t.Fatalf("update: %v", err)
	}

	if next, err := repo.FetchNext(ctx); err != nil || next != nil {
		t.Fatalf("expected job %d to wait, got %+v %v", id, next, err)
	}
}

func TestRetryThenSucceed(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	var calls atomic.Int32
	pool := newPool(repo, map[string]jobs.Handler{
		"flaky": func(ctx context.Context, j *jobs.Job) error {
			if calls.Add(1) == 1 {
				return errors.New("temporary")
			}
			return nil
		},
	})
	pool.Start(ctx)
	defer pool.Stop()

	id, err := pool.Enqueue(ctx, "flaky", nil, 0, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(t, func() bool {
		j, err := repo.Get(ctx, id)
		return err == nil && j.Status == jobs.StatusDone
	})
	j, _ := repo.Get(ctx, id)
	if j.Attempts != 1 || j.LastError != "temporary" {
		t.Fatalf("unexpected job state %+v", j)
	}
}

func TestExhaustedJobMovesToDeadLetter(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	pool := newPool(repo, map[string]jobs.Handler{
		"broken": func(ctx context.Context, j *jobs.Job) error { return errors.New("always") },
	})
	pool.Start(ctx)
	defer pool.Stop()

	if _, err := pool.Enqueue(ctx, "broken", nil, 0, 2); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := pool.Enqueue(ctx, "unknown", nil, 0, 2); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var dl []jobs.DeadLetter
	waitFor(t, func() bool {
		var err error
		dl, err = repo.DeadLetters(ctx)
		return err == nil && len(dl) == 2
	})
	byType := map[string]jobs.DeadLetter{}
	for _, d := range dl {
		byType[d.Type] = d
	}
	if byType["broken"].Attempts != 2 || byType["broken"].LastError != "always" {
		t.Fatalf("unexpected dead letter %+v", byType["broken"])
	}
	if byType["unknown"].LastError != "no handler" {
		t.Fatalf("unexpected dead letter %+v", byType["unknown"])
	}
}

func TestStopIsIdempotent(t *testing.T) {
	pool := newPool(setupRepo(t), nil)
	pool.Start(context.Background())
	pool.Stop()
	pool.Stop()
}

func TestShutdownRequeuesInterruptedJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := setupRepo(t)

	started := make(chan struct{})
	pool := newPool(repo, map[string]jobs.Handler{
		"slow": func(ctx context.Context, j *jobs.Job) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	})
	pool.Start(ctx)

	id, err := pool.Enqueue(context.Background(), "slow", nil, 0, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatalf("handler never started")
	}
	cancel()
	pool.Stop()

	j, err := repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if j.Status != jobs.StatusQueued {
		t.Fatalf("expected status %q got %q", jobs.StatusQueued, j.Status)
	}
	if j.Attempts != 0 {
		t.Fatalf("expected no attempt charged got %d", j.Attempts)
	}
}

func TestStartReclaimsRunningJobs(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	id, err := repo.Enqueue(ctx, &jobs.Job{Type: "test", Payload: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// a claim with no worker behind it, as left by a crashed process
	if _, err := repo.FetchNext(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	var calls atomic.Int32
	pool := newPool(repo, map[string]jobs.Handler{
		"test": func(context.Context, *jobs.Job) error {
			calls.Add(1)
			return nil
		},
	})
	pool.Start(ctx)
	defer pool.Stop()

	waitFor(t, func() bool {
		j, err := repo.Get(ctx, id)
		return err == nil && j.Status == jobs.StatusDone
	})
	if calls.Load() != 1 {
		t.Fatalf("expected 1 handler call got %d", calls.Load())
	}
}

func TestBackoffDuration(t *testing.T) {
	cases := map[int]time.Duration{
		0:  time.Second,
		1:  2 * time.Second,
		3:  8 * time.Second,
		9:  5 * time.Minute,
		70: 5 * time.Minute,
	}
	for attempt, want := range cases {
		if got := jobs.BackoffDuration(attempt); got != want {
			t.Fatalf("attempt %d: expected %v got %v", attempt, want, got)
		}
	}
}

func contactJob(t *testing.T, m *models.ContactMessage) *jobs.Job {
	t.Helper()
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &jobs.Job{Type: jobs.TypeContactDeliver, Payload: b}
}

func TestDeliveryPostsWebhook(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	subs := mock.NewSubmissions()
	m := &models.ContactMessage{ID: "c-1", Name: "Ada", Email: "ada@example.com", Message: "hi", Status: models.SubmissionPending}
	if err := subs.CreateContactMessage(context.Background(), m); err != nil {
		t.Fatalf("create: %v", err)
	}

	d := jobs.NewDelivery(subs, srv.URL, srv.Client(), nil)
	if err := d.Handlers()[jobs.TypeContactDeliver](context.Background(), contactJob(t, m)); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	var got struct {
		Kind       string                `json:"kind"`
		Submission models.ContactMessage `json:"submission"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode webhook body %q: %v", body, err)
	}
	if got.Kind != repository.KindContact || got.Submission.Email != "ada@example.com" {
		t.Fatalf("unexpected webhook body %+v", got)
	}
	if s := subs.Status(repository.KindContact, "c-1"); s != models.SubmissionDelivered {
		t.Fatalf("expected delivered, got %q", s)
	}
}

func TestDeliveryWebhookFailureKeepsPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	subs := mock.NewSubmissions()
	m := &models.ContactMessage{ID: "c-2", Name: "Ada", Email: "ada@example.com", Message: "hi", Status: models.SubmissionPending}
	_ = subs.CreateContactMessage(context.Background(), m)

	d := jobs.NewDelivery(subs, srv.URL, srv.Client(), nil)
	if err := d.Handlers()[jobs.TypeContactDeliver](context.Background(), contactJob(t, m)); err == nil {
		t.Fatalf("expected webhook error")
	}
	if s := subs.Status(repository.KindContact, "c-2"); s != models.SubmissionPending {
		t.Fatalf("expected pending, got %q", s)
	}
}

func TestDeliveryWithoutWebhookLogs(t *testing.T) {
	subs := mock.NewSubmissions()
	r := &models.DocumentRequest{ID: "r-1", DocumentID: "doc-2", RequesterEmail: "bob@example.com", Status: models.SubmissionPending, RefCode: "REQ-ABCDEF12"}
	_ = subs.CreateDocumentRequest(context.Background(), r)
	b, _ := json.Marshal(r)

	d := jobs.NewDelivery(subs, "", nil, nil)
	if err := d.Handlers()[jobs.TypeDocumentRequestDeliver](context.Background(), &jobs.Job{Type: jobs.TypeDocumentRequestDeliver, Payload: b}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if s := subs.Status(repository.KindDocumentRequest, "r-1"); s != models.SubmissionDelivered {
		t.Fatalf("expected delivered, got %q", s)
	}
}

func TestDeliveryBadPayload(t *testing.T) {
	d := jobs.NewDelivery(mock.NewSubmissions(), "", nil, nil)
	if err := d.Handlers()[jobs.TypeContactDeliver](context.Background(), &jobs.Job{Payload: []byte("not json")}); err == nil {
		t.Fatalf("expected decode error")
	}
}
