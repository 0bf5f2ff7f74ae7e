package usecase

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	domrepo "github.com/GabrielWalak/delivery-prediction/internal/domain/repository"
	"github.com/GabrielWalak/delivery-prediction/internal/domain/service"
	"github.com/GabrielWalak/delivery-prediction/internal/repository"
	"github.com/GabrielWalak/delivery-prediction/internal/services/anomaly"
	"github.com/GabrielWalak/delivery-prediction/internal/services/features"
	"github.com/GabrielWalak/delivery-prediction/internal/services/regression"
	"github.com/GabrielWalak/delivery-prediction/pkg/cache"
)

type stubSource struct {
	orders []models.OrderRecord
	err    error
	calls  int
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) FetchOrders(context.Context) ([]models.OrderRecord, error) {
	s.calls++
	return s.orders, s.err
}

// linearModel predicts sum(row[i]*w[i]).
type linearModel struct{ w []float64 }

func (m linearModel) Predict(row []float64) float64 {
	out := 0.0
	for i, v := range row {
		out += v * m.w[i]
	}
	return out
}

type stubTrainer struct {
	features []string
	err      error
}

func (t stubTrainer) TrainAndEvaluate(_ context.Context, ds models.Dataset) (service.TrainResult, error) {
	if t.err != nil {
		return service.TrainResult{}, t.err
	}
	names := t.features
	if names == nil {
		names = ds.Features
	}
	w := make([]float64, len(names))
	for i := range w {
		w[i] = 0.001
	}
	return service.TrainResult{
		Model:    linearModel{w: w},
		Features: names,
		Metrics:  models.ModelMetrics{R2: 0.42, MAE: 3.1},
		Records:  ds.Len(),
	}, nil
}

type passFilter struct{}

func (passFilter) Filter(ds models.Dataset) (models.Dataset, int, error) { return ds, 0, nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.PredictionEvent
	err    error
}

func (p *recordingPublisher) PublishPrediction(_ context.Context, ev models.PredictionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func syntheticOrders(t *testing.T, n int) []models.OrderRecord {
	t.Helper()
	orders, err := repository.NewSyntheticOrderSource(n, 5).FetchOrders(context.Background())
	if err != nil {
		t.Fatalf("synthetic orders: %v", err)
	}
	return orders
}

func f64(v float64) *float64 { return &v }

func validRequest() models.DeliveryEstimateRequest {
	weekend := false
	month := 11
	return models.DeliveryEstimateRequest{
		ProductWeightG: f64(1200),
		ProductVolCm3:  f64(4500),
		DistanceKm:     f64(800),
		CustomerLat:    f64(-23.55),
		CustomerLng:    f64(-46.63),
		SellerLat:      f64(-23.95),
		SellerLng:      f64(-46.33),
		PaymentLagDays: f64(2),
		IsWeekendOrder: &weekend,
		FreightValue:   f64(29.9),
		PurchaseMonth:  &month,
	}
}

func newStubEngine(t *testing.T, trainer service.Trainer, opts ...EngineOption) *PredictionEngine {
	t.Helper()
	src := &stubSource{orders: syntheticOrders(t, 200)}
	return NewPredictionEngine(src, features.NewProcessor(), passFilter{}, trainer, opts...)
}

func TestEngineColdUntilTrained(t *testing.T) {
	e := newStubEngine(t, stubTrainer{})

	if e.Ready() {
		t.Fatalf("new engine must be cold")
	}
	if _, err := e.Predict(validRequest().Features()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if _, err := e.Estimate(context.Background(), validRequest()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady from Estimate, got %v", err)
	}
	if _, err := e.Health(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady from Health, got %v", err)
	}
	if init := e.Init(); init.Ready || !errors.Is(init.Err, models.ErrNotTrained) {
		t.Fatalf("unexpected init result %+v", init)
	}
}

func TestEngineReadinessViewsAgreeDuringTrain(t *testing.T) {
	e := newStubEngine(t, stubTrainer{})

	done := make(chan struct{})
	errc := make(chan string, 1)
	go func() {
		defer close(errc)
		for {
			select {
			case <-done:
				return
			default:
			}
			if e.Ready() && !e.Init().Ready {
				errc <- "Ready is true while Init reports cold"
				return
			}
			if e.Init().Ready {
				if _, err := e.Predict(validRequest().Features()); err != nil {
					errc <- "Init reports ready but Predict failed: " + err.Error()
					return
				}
			}
		}
	}()

	if _, err := e.Train(context.Background()); err != nil {
		t.Fatalf("train: %v", err)
	}
	close(done)
	if msg, ok := <-errc; ok {
		t.Fatal(msg)
	}
	if !e.Ready() || !e.Init().Ready {
		t.Fatalf("engine should be warm: ready=%v init=%+v", e.Ready(), e.Init())
	}
}

func TestEngineTrainFailureStaysCold(t *testing.T) {
	boom := errors.New("warehouse offline")
	src := &stubSource{err: boom}
	e := NewPredictionEngine(src, features.NewProcessor(), passFilter{}, stubTrainer{})

	report, err := e.Train(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if report.Success || report.Error == "" {
		t.Fatalf("report should describe the failure: %+v", report)
	}
	if e.Ready() {
		t.Fatalf("engine must stay cold after a failed training")
	}
	init := e.Init()
	if init.Ready || !errors.Is(init.Err, boom) || init.Reason() == "" {
		t.Fatalf("unexpected init result %+v", init)
	}

	// No retry: a second attempt is refused and the source is not hit again.
	if _, err := e.Train(context.Background()); !errors.Is(err, ErrAlreadyTrained) {
		t.Fatalf("expected ErrAlreadyTrained, got %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("expected a single fetch, got %d", src.calls)
	}
}

func TestEngineTrainerFailureStaysCold(t *testing.T) {
	e := newStubEngine(t, stubTrainer{err: errors.New("too few rows")})
	if _, err := e.Train(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if e.Ready() {
		t.Fatalf("engine must stay cold")
	}
}

func TestEngineEstimate(t *testing.T) {
	pub := &recordingPublisher{}
	e := newStubEngine(t, stubTrainer{}, WithPredictionPublisher(pub))

	report, err := e.Train(context.Background())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if !report.Success || report.Records == 0 || report.RawRecords != 200 {
		t.Fatalf("unexpected report %+v", report)
	}

	resp, err := e.Estimate(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if resp.R2Score != 0.42 || resp.MAE != 3.1 {
		t.Fatalf("metrics must be the training-time metrics, got %+v", resp)
	}
	if resp.Message != PredictionMessage {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	if resp.Warnings == nil || len(resp.Warnings) != 0 {
		t.Fatalf("expected an empty, non-nil warnings list, got %#v", resp.Warnings)
	}

	again, _ := e.Estimate(context.Background(), validRequest())
	if again.PredictedDays != resp.PredictedDays {
		t.Fatalf("identical payloads must give identical predictions")
	}
	if len(pub.events) != 2 || pub.events[0].ModelVersion == "" {
		t.Fatalf("expected two published events, got %+v", pub.events)
	}

	h, err := e.Health()
	if err != nil || h.Status != "ready" || h.Records != report.Records || *h.R2Score != 0.42 {
		t.Fatalf("unexpected health %+v %v", h, err)
	}
}

func TestEnginePredictUsesTrainedFeatureOrder(t *testing.T) {
	e := newStubEngine(t, stubTrainer{features: []string{models.FeatureDistanceKm, models.FeatureIsWeekendOrder}})
	if _, err := e.Train(context.Background()); err != nil {
		t.Fatalf("train: %v", err)
	}

	f := validRequest().Features()
	f.IsWeekendOrder = true
	got, err := e.Predict(f)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	// 800*0.001 + 1*0.001
	if want := 0.801; got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestEngineMissingFeature(t *testing.T) {
	e := newStubEngine(t, stubTrainer{features: []string{models.FeatureDistanceKm, "seller_zip_prefix"}})
	if _, err := e.Train(context.Background()); err != nil {
		t.Fatalf("train: %v", err)
	}

	_, err := e.Estimate(context.Background(), validRequest())
	var mf *MissingFeatureError
	if !errors.As(err, &mf) || mf.Feature != "seller_zip_prefix" {
		t.Fatalf("expected missing feature error, got %v", err)
	}
	if err.Error() != "payload missing expected feature: seller_zip_prefix" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestEnginePublishFailureDoesNotFailPrediction(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	e := newStubEngine(t, stubTrainer{}, WithPredictionPublisher(pub))
	_, _ = e.Train(context.Background())

	if _, err := e.Estimate(context.Background(), validRequest()); err != nil {
		t.Fatalf("publish errors must not surface: %v", err)
	}
}

func TestEngineCacheServesSameValue(t *testing.T) {
	pc := repository.NewCachedPredictions(cache.NewMemoryCache(), time.Minute)
	e := newStubEngine(t, stubTrainer{}, WithPredictionCache(pc))
	_, _ = e.Train(context.Background())

	first, _ := e.Estimate(context.Background(), validRequest())
	second, _ := e.Estimate(context.Background(), validRequest())
	if first.PredictedDays != second.PredictedDays || first.R2Score != second.R2Score {
		t.Fatalf("cached and fresh predictions differ: %+v vs %+v", first, second)
	}
}

func TestDescribeWarnings(t *testing.T) {
	base := validRequest().Features()

	cases := []struct {
		name   string
		mutate func(*models.DeliveryFeatures)
		want   []string
	}{
		{"normal", func(*models.DeliveryFeatures) {}, []string{}},
		{"large distance", func(f *models.DeliveryFeatures) { f.DistanceKm = 5000 }, []string{"very large distance (>3000 km)"}},
		{"small distance", func(f *models.DeliveryFeatures) { f.DistanceKm = 3 }, []string{"very small distance (<10 km)"}},
		{"light and expensive", func(f *models.DeliveryFeatures) {
			f.WeightG = 50
			f.FreightValue = 600
		}, []string{"very low weight (<100 g)", "very high shipping price (>500 BRL)"}},
		{"everything", func(f *models.DeliveryFeatures) {
			f.DistanceKm = 3001
			f.WeightG = 20001
			f.FreightValue = 501
			f.VolCm3 = 50001
		}, []string{
			"very large distance (>3000 km)",
			"very high weight (>20 kg)",
			"very high shipping price (>500 BRL)",
			"very large volume (>50000 cm³)",
		}},
		{"boundaries are normal", func(f *models.DeliveryFeatures) {
			f.DistanceKm = 3000
			f.WeightG = 20000
			f.FreightValue = 500
			f.VolCm3 = 50000
		}, []string{}},
	}

	for _, tc := range cases {
		f := base
		tc.mutate(&f)
		if got := DescribeWarnings(f); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestEngineEndToEndWithRealPipeline(t *testing.T) {
	src := repository.NewSyntheticOrderSource(1500, 7)
	e := NewPredictionEngine(src,
		features.NewProcessor(),
		anomaly.NewIsolationForest(anomaly.Config{Trees: 50, SampleSize: 256, Contamination: 0.02, Seed: 7}),
		regression.NewTrainer(regression.TrainerConfig{
			TestRatio: 0.2,
			Seed:      7,
			MinRows:   100,
			Boosting:  regression.BoostingConfig{Rounds: 80, LearningRate: 0.1, MaxDepth: 4, MinSamplesLeaf: 10, Bins: 32},
		}),
	)

	report, err := e.Train(context.Background())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if report.OutliersRemoved == 0 || report.Metrics.R2 <= 0.3 {
		t.Fatalf("unexpected report %+v", report)
	}

	var wg sync.WaitGroup
	results := make([]float64, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := e.Estimate(context.Background(), validRequest())
			if err == nil {
				results[i] = resp.PredictedDays
			}
		}(i)
	}
	wg.Wait()
	for _, v := range results {
		if v != results[0] || v <= 0 {
			t.Fatalf("concurrent predictions differ or are non-positive: %v", results)
		}
	}
}

var _ domrepo.PredictionPublisher = (*recordingPublisher)(nil)

func TestEngineReportUsesClock(t *testing.T) {
	at := time.Date(2018, 3, 14, 9, 30, 0, 0, time.UTC)
	e := newStubEngine(t, stubTrainer{}, WithClock(func() time.Time { return at }))

	report, err := e.Train(context.Background())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if !report.TrainedAt.Equal(at) || report.Duration != 0 {
		t.Fatalf("unexpected timing %v %v", report.TrainedAt, report.Duration)
	}
	if report.Version() != "20180314T093000.000000000Z" {
		t.Fatalf("unexpected version %q", report.Version())
	}
}
