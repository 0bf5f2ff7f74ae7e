package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type shipment struct {
	Weight  *float64 `json:"weight" validate:"required,gte=0"`
	Lat     *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Express *bool    `json:"express" validate:"required"`
	Month   *int     `json:"month" validate:"required,gte=1,lte=12"`
}

func codesByField(errs []ValidationError) map[string]string {
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[e.Field] = e.Code
	}
	return out
}

func TestDecodeAndValidateStrictAcceptsValidBody(t *testing.T) {
	var req shipment
	errs := DecodeAndValidateStrict(context.Background(),
		[]byte(`{"weight": 0, "lat": -23.5, "express": false, "month": 12}`), &req)
	if errs != nil {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if *req.Weight != 0 || *req.Lat != -23.5 || *req.Express || *req.Month != 12 {
		t.Fatalf("unexpected decode: %+v", req)
	}
}

func TestDecodeAndValidateStrictReportsEveryViolation(t *testing.T) {
	var req shipment
	errs := DecodeAndValidateStrict(context.Background(),
		[]byte(`{"weight": -1, "lat": 95, "month": "may", "colour": "red"}`), &req)

	got := codesByField(errs)
	want := map[string]string{
		"colour":  "ERR_EXTRA_FORBIDDEN",
		"weight":  "ERR_GTE",
		"lat":     "ERR_LTE",
		"express": "ERR_REQUIRED",
		"month":   "ERR_TYPE",
	}
	if len(errs) != len(want) {
		t.Fatalf("expected %d errors, got %+v", len(want), errs)
	}
	for field, code := range want {
		if got[field] != code {
			t.Fatalf("field %s: expected %s, got %q (all: %+v)", field, code, got[field], errs)
		}
	}
}

func TestDecodeAndValidateStrictNullCountsAsMissing(t *testing.T) {
	var req shipment
	errs := DecodeAndValidateStrict(context.Background(),
		[]byte(`{"weight": null, "lat": 1, "express": true, "month": 1}`), &req)
	if len(errs) != 1 || errs[0].Field != "weight" || errs[0].Code != "ERR_REQUIRED" {
		t.Fatalf("unexpected errors: %+v", errs)
	}
}

func TestDecodeAndValidateStrictRejectsFractionalInteger(t *testing.T) {
	var req shipment
	errs := DecodeAndValidateStrict(context.Background(),
		[]byte(`{"weight": 1, "lat": 1, "express": true, "month": 1.5}`), &req)
	if len(errs) != 1 || errs[0].Code != "ERR_TYPE" || errs[0].Params["type"] != "an integer" {
		t.Fatalf("unexpected errors: %+v", errs)
	}
}

func TestDecodeAndValidateStrictAcceptsWholeFloatInteger(t *testing.T) {
	for _, month := range []string{`1.0`, `1.1e1`, `12.00`} {
		var req shipment
		body := `{"weight": 1, "lat": 1, "express": true, "month": ` + month + `}`
		if errs := DecodeAndValidateStrict(context.Background(), []byte(body), &req); errs != nil {
			t.Fatalf("month %s: unexpected errors %+v", month, errs)
		}
		if req.Month == nil {
			t.Fatalf("month %s: not decoded", month)
		}
	}

	var req shipment
	DecodeAndValidateStrict(context.Background(),
		[]byte(`{"weight": 1, "lat": 1, "express": true, "month": 1.1e1}`), &req)
	if *req.Month != 11 {
		t.Fatalf("expected month 11, got %d", *req.Month)
	}
}

func TestDecodeAndValidateStrictIntegerStillTyped(t *testing.T) {
	for _, month := range []string{`"11"`, `true`, `1e400`, `-0.5`} {
		var req shipment
		body := `{"weight": 1, "lat": 1, "express": true, "month": ` + month + `}`
		errs := DecodeAndValidateStrict(context.Background(), []byte(body), &req)
		if len(errs) != 1 || errs[0].Code != "ERR_TYPE" || errs[0].Field != "month" {
			t.Fatalf("month %s: unexpected errors %+v", month, errs)
		}
	}
}

func TestDecodeAndValidateStrictWholeFloatStillBounded(t *testing.T) {
	var req shipment
	errs := DecodeAndValidateStrict(context.Background(),
		[]byte(`{"weight": 1, "lat": 1, "express": true, "month": 13.0}`), &req)
	if len(errs) != 1 || errs[0].Code != "ERR_LTE" {
		t.Fatalf("unexpected errors: %+v", errs)
	}
}

func TestDecodeAndValidateStrictRejectsNonObject(t *testing.T) {
	for _, body := range []string{``, `[]`, `null`, `{"weight":`} {
		var req shipment
		errs := DecodeAndValidateStrict(context.Background(), []byte(body), &req)
		if len(errs) != 1 || errs[0].Code != "ERR_INVALID_JSON" {
			t.Fatalf("body %q: unexpected errors %+v", body, errs)
		}
	}
}

func TestReadAndValidateStrictFromEcho(t *testing.T) {
	e := echo.New()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"weight": 3}`))
	c := e.NewContext(r, httptest.NewRecorder())

	var req shipment
	errs := ReadAndValidateStrict(c, &req)
	if len(errs) != 3 {
		t.Fatalf("expected three missing fields, got %+v", errs)
	}
	for _, e := range errs {
		if e.Code != "ERR_REQUIRED" {
			t.Fatalf("unexpected code %s", e.Code)
		}
	}
}
