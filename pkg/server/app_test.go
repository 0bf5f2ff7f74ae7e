package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	"github.com/GabrielWalak/delivery-prediction/internal/usecase"
	xhttp "github.com/GabrielWalak/delivery-prediction/pkg/http"
)

type stubTrainer struct {
	report models.TrainingReport
	err    error
	calls  int
}

func (s *stubTrainer) Train(ctx context.Context) (models.TrainingReport, error) {
	s.calls++
	if _, ok := ctx.Deadline(); !ok {
		return s.report, errors.New("training context has no deadline")
	}
	return s.report, s.err
}

type stubRecorder struct {
	mu      sync.Mutex
	initErr error
	reports []models.TrainingReport
	closed  bool
}

func (r *stubRecorder) Init(context.Context) error { return r.initErr }

func (r *stubRecorder) Record(_ context.Context, report models.TrainingReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func (r *stubRecorder) Close() error {
	r.closed = true
	return nil
}

type closeCounter struct{ n *int }

func (c closeCounter) Close() error {
	*c.n++
	return nil
}

func newApp(tr Trainer, opts ...AppOption) *App {
	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0), xhttp.WithMetrics("", 0))
	opts = append([]AppOption{WithTimeouts(time.Minute, time.Second)}, opts...)
	return New(nil, tr, srv, opts...)
}

func TestBootstrapRecordsSuccessAndFailure(t *testing.T) {
	for _, trainErr := range []error{nil, errors.New("no usable rows")} {
		rec := &stubRecorder{}
		tr := &stubTrainer{report: models.TrainingReport{Source: "synthetic", Success: trainErr == nil}, err: trainErr}
		app := newApp(tr, WithTrainingRecorder(rec))

		report := app.Bootstrap(context.Background())
		if report.Source != "synthetic" || tr.calls != 1 {
			t.Fatalf("unexpected report %+v after %d calls", report, tr.calls)
		}
		if len(rec.reports) != 1 || rec.reports[0].Success != (trainErr == nil) {
			t.Fatalf("expected one recorded report, got %+v", rec.reports)
		}
	}
}

func TestBootstrapSkipsBrokenRecorder(t *testing.T) {
	rec := &stubRecorder{initErr: errors.New("disk full")}
	app := newApp(&stubTrainer{}, WithTrainingRecorder(rec))
	app.Bootstrap(context.Background())
	if len(rec.reports) != 0 {
		t.Fatalf("recorder that failed init must not be used")
	}
}

func TestBootstrapIgnoresRepeatedTraining(t *testing.T) {
	rec := &stubRecorder{}
	app := newApp(&stubTrainer{err: usecase.ErrAlreadyTrained}, WithTrainingRecorder(rec))
	app.Bootstrap(context.Background())
	if len(rec.reports) != 0 {
		t.Fatalf("a skipped attempt must not be recorded")
	}
}

func TestRunContextShutsDownOnCancel(t *testing.T) {
	closed := 0
	rec := &stubRecorder{}
	app := newApp(&stubTrainer{}, WithTrainingRecorder(rec),
		WithCloser("first", closeCounter{&closed}),
		WithCloser("second", closeCounter{&closed}),
		WithCloser("missing", nil),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("app did not stop")
	}
	if closed != 2 || !rec.closed {
		t.Fatalf("expected every component closed, got %d closers, recorder closed=%v", closed, rec.closed)
	}
}
