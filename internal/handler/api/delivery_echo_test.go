package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	"github.com/GabrielWalak/delivery-prediction/internal/repository"
	"github.com/GabrielWalak/delivery-prediction/internal/services/anomaly"
	"github.com/GabrielWalak/delivery-prediction/internal/services/features"
	"github.com/GabrielWalak/delivery-prediction/internal/services/regression"
	"github.com/GabrielWalak/delivery-prediction/internal/usecase"
	xhttp "github.com/GabrielWalak/delivery-prediction/pkg/http"
)

const validBody = `{
	"product_weight_g": 1200,
	"product_vol_cm3": 4500,
	"distance_km": 800,
	"customer_lat": -23.55,
	"customer_lng": -46.63,
	"seller_lat": -22.9,
	"seller_lng": -43.2,
	"payment_lag_days": 1,
	"is_weekend_order": false,
	"freight_value": 29.9,
	"purchase_month": 11
}`

type stubEstimator struct {
	init     models.InitResult
	health   *models.HealthResponse
	estimate *models.PredictionResponse
	err      error
	calls    int
	last     models.DeliveryEstimateRequest
}

func (s *stubEstimator) Init() models.InitResult { return s.init }

func (s *stubEstimator) Health() (*models.HealthResponse, error) {
	if !s.init.Ready {
		return nil, usecase.ErrNotReady
	}
	return s.health, nil
}

func (s *stubEstimator) Estimate(_ context.Context, req models.DeliveryEstimateRequest) (*models.PredictionResponse, error) {
	s.calls++
	s.last = req
	return s.estimate, s.err
}

type envelope struct {
	Status  int                     `json:"status"`
	Message string                  `json:"message"`
	Data    []xhttp.ValidationError `json:"data"`
}

func newTestServer(engine DeliveryEstimator) *xhttp.Server {
	return xhttp.NewServer(NewDeliveryEchoHandler(nil, engine), xhttp.WithMetrics("", 0), xhttp.WithDocs(false))
}

func do(s *xhttp.Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestRootAlwaysAvailable(t *testing.T) {
	s := newTestServer(&stubEstimator{init: models.NotReady(nil)})
	rec := do(s, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var info models.ServiceInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if info.Service != ServiceName || info.Version != "1.0.0" || info.Status != "operational" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Endpoints["predict"] != "/predict (POST)" || len(info.Endpoints) != 5 {
		t.Fatalf("unexpected endpoints %+v", info.Endpoints)
	}
}

func TestColdEngineReturns503(t *testing.T) {
	stub := &stubEstimator{init: models.NotReady(errors.New("fetch orders: file not found"))}
	s := newTestServer(stub)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/health", ""},
		{http.MethodPost, "/predict", validBody},
		{http.MethodPost, "/predict", `{"colour": "red"}`},
	} {
		rec := do(s, tc.method, tc.path, tc.body)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s: expected 503, got %d", tc.method, tc.path, rec.Code)
		}
		env := decodeEnvelope(t, rec)
		if env.Status != 503 || len(env.Data) != 1 || env.Data[0].Code != "ERR_NOT_READY" {
			t.Fatalf("unexpected envelope %+v", env)
		}
		if env.Data[0].Message != warmingUpMessage {
			t.Fatalf("unexpected message %q", env.Data[0].Message)
		}
		if env.Data[0].Params["reason"] != "fetch orders: file not found" {
			t.Fatalf("expected reason param, got %+v", env.Data[0].Params)
		}
	}
	if stub.calls != 0 {
		t.Fatalf("estimate must not run while cold")
	}
}

func TestPredictRejectsInvalidPayload(t *testing.T) {
	stub := &stubEstimator{init: models.InitResult{Ready: true}}
	s := newTestServer(stub)

	cases := map[string]struct {
		body  string
		field string
		code  string
	}{
		"out of range lat": {strings.Replace(validBody, `"customer_lat": -23.55`, `"customer_lat": 91`, 1), "customer_lat", "ERR_LTE"},
		"negative weight":  {strings.Replace(validBody, `"product_weight_g": 1200`, `"product_weight_g": -1`, 1), "product_weight_g", "ERR_GTE"},
		"month 13":         {strings.Replace(validBody, `"purchase_month": 11`, `"purchase_month": 13`, 1), "purchase_month", "ERR_LTE"},
		"missing field":    {strings.Replace(validBody, `"freight_value": 29.9,`, ``, 1), "freight_value", "ERR_REQUIRED"},
		"extra field":      {strings.Replace(validBody, `"purchase_month": 11`, `"purchase_month": 11, "coupon": "X"`, 1), "coupon", "ERR_EXTRA_FORBIDDEN"},
		"wrong type":       {strings.Replace(validBody, `"is_weekend_order": false`, `"is_weekend_order": "no"`, 1), "is_weekend_order", "ERR_TYPE"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(s, http.MethodPost, "/predict", tc.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
			}
			env := decodeEnvelope(t, rec)
			if len(env.Data) != 1 || env.Data[0].Field != tc.field || env.Data[0].Code != tc.code {
				t.Fatalf("unexpected violations %+v", env.Data)
			}
		})
	}

	rec := do(s, http.MethodPost, "/predict", `{"distance_km": -5, "colour": "red"}`)
	env := decodeEnvelope(t, rec)
	if rec.Code != http.StatusUnprocessableEntity || len(env.Data) != 12 {
		t.Fatalf("expected every violation listed, got %d: %+v", rec.Code, env.Data)
	}
	if stub.calls != 0 {
		t.Fatalf("estimate must not run for invalid payloads")
	}
}

func TestPredictAcceptsWholeFloatMonth(t *testing.T) {
	for _, month := range []string{`11.0`, `1.1e1`} {
		stub := &stubEstimator{
			init:     models.InitResult{Ready: true},
			estimate: &models.PredictionResponse{Warnings: []string{}},
		}
		s := newTestServer(stub)
		body := strings.Replace(validBody, `"purchase_month": 11`, `"purchase_month": `+month, 1)
		rec := do(s, http.MethodPost, "/predict", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("month %s: expected 200, got %d: %s", month, rec.Code, rec.Body.String())
		}
		if stub.last.PurchaseMonth == nil || *stub.last.PurchaseMonth != 11 {
			t.Fatalf("month %s: decoded %+v", month, stub.last.PurchaseMonth)
		}
	}

	s := newTestServer(&stubEstimator{init: models.InitResult{Ready: true}})
	rec := do(s, http.MethodPost, "/predict", strings.Replace(validBody, `"purchase_month": 11`, `"purchase_month": 11.5`, 1))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a fractional month, got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); len(env.Data) != 1 || env.Data[0].Code != "ERR_TYPE" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestPredictMissingFeatureIs400(t *testing.T) {
	s := newTestServer(&stubEstimator{
		init: models.InitResult{Ready: true},
		err:  &usecase.MissingFeatureError{Feature: "seller_zip"},
	})
	rec := do(s, http.MethodPost, "/predict", validBody)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if len(env.Data) != 1 || env.Data[0].Message != "payload missing expected feature: seller_zip" ||
		env.Data[0].Code != "ERR_MISSING_FEATURE" || env.Data[0].Field != "seller_zip" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestPredictUnexpectedErrorIs500(t *testing.T) {
	s := newTestServer(&stubEstimator{init: models.InitResult{Ready: true}, err: errors.New("boom")})
	rec := do(s, http.MethodPost, "/predict", validBody)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func newWarmEngine(t *testing.T) *usecase.PredictionEngine {
	t.Helper()
	engine := usecase.NewPredictionEngine(
		repository.NewSyntheticOrderSource(800, 11),
		features.NewProcessor(),
		anomaly.NewIsolationForest(anomaly.Config{Trees: 25, SampleSize: 128, Contamination: 0.02, Seed: 11}),
		regression.NewTrainer(regression.TrainerConfig{
			TestRatio: 0.2,
			Seed:      11,
			MinRows:   50,
			Boosting:  regression.BoostingConfig{Rounds: 30, LearningRate: 0.1, MaxDepth: 3, MinSamplesLeaf: 10, Bins: 16},
		}),
	)
	if _, err := engine.Train(context.Background()); err != nil {
		t.Fatalf("train: %v", err)
	}
	return engine
}

func TestWarmEngineEndToEnd(t *testing.T) {
	engine := newWarmEngine(t)
	s := newTestServer(engine)

	rec := do(s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var health models.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if health.Status != "ready" || health.Records <= 0 {
		t.Fatalf("unexpected health %+v", health)
	}

	rec = do(s, http.MethodPost, "/predict", validBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"warnings":[]`) {
		t.Fatalf("warnings must be an empty list, got %s", rec.Body.String())
	}
	var first models.PredictionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if first.Message != usecase.PredictionMessage || first.PredictedDays <= 0 {
		t.Fatalf("unexpected prediction %+v", first)
	}
	if health.R2Score == nil || *health.R2Score != first.R2Score || health.MAE == nil || *health.MAE != first.MAE {
		t.Fatalf("health and predict metrics differ: %+v vs %+v", health, first)
	}

	rec = do(s, http.MethodPost, "/predict", validBody)
	var second models.PredictionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical requests should give identical responses: %+v vs %+v", first, second)
	}
}

func TestWarmEngineWarnings(t *testing.T) {
	s := newTestServer(newWarmEngine(t))

	body := strings.NewReplacer(
		`"distance_km": 800`, `"distance_km": 3500`,
		`"product_weight_g": 1200`, `"product_weight_g": 50`,
	).Replace(validBody)
	rec := do(s, http.MethodPost, "/predict", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res models.PredictionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	want := []string{"very large distance (>3000 km)", "very low weight (<100 g)"}
	if !reflect.DeepEqual(res.Warnings, want) {
		t.Fatalf("expected %v, got %v", want, res.Warnings)
	}
}
