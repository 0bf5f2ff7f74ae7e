package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

const maxBodyBytes = 1 << 20

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(jsonName)
}

// ReadAndValidateStrict reads the request body into req, which must be a
// pointer to a struct. Unknown keys and type mismatches are reported
// alongside validator failures so the caller gets every violation at once.
// Returns nil when the body is valid.
func ReadAndValidateStrict(c echo.Context, req interface{}) []ValidationError {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		return []ValidationError{{Code: "ERR_INVALID_BODY", Message: fmt.Sprintf("read body: %v", err)}}
	}
	if len(body) > maxBodyBytes {
		return []ValidationError{{Code: "ERR_BODY_TOO_LARGE", Message: "request body is too large"}}
	}
	return DecodeAndValidateStrict(c.Request().Context(), body, req)
}

// DecodeAndValidateStrict is ReadAndValidateStrict without the echo context.
func DecodeAndValidateStrict(ctx context.Context, body []byte, req interface{}) []ValidationError {
	rv := reflect.ValueOf(req)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return []ValidationError{{Code: "ERR_UNKNOWN", Message: "request target must be a struct pointer"}}
	}
	rv = rv.Elem()

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return []ValidationError{{Code: "ERR_INVALID_JSON", Message: "request body must be a JSON object"}}
	}

	known := structFields(rv.Type())
	errs := make([]ValidationError, 0)

	extras := make([]string, 0)
	for key := range raw {
		if _, ok := known[key]; !ok {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		errs = append(errs, ValidationError{
			Code:    "ERR_EXTRA_FORBIDDEN",
			Field:   key,
			Message: fmt.Sprintf("%s is not a permitted field", key),
		})
	}

	typeFailed := make(map[string]bool)
	for _, f := range orderedFields(known) {
		value, ok := raw[f.name]
		if !ok || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			continue
		}
		field := rv.Field(f.index)
		decoded, err := decodeField(value, field.Type())
		if err != nil {
			typeFailed[f.name] = true
			errs = append(errs, ValidationError{
				Code:    "ERR_TYPE",
				Field:   f.name,
				Message: fmt.Sprintf("%s must be %s", f.name, describeKind(field.Type())),
				Params:  map[string]interface{}{"type": describeKind(field.Type())},
			})
			continue
		}
		field.Set(decoded)
	}

	if err := validate.StructCtx(ctx, req); err != nil {
		for _, ve := range validatorDefaultRules(err) {
			if typeFailed[ve.Field] {
				continue
			}
			errs = append(errs, ve)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func strictUnmarshal(data []byte, dest interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(dest)
}

// decodeField decodes data into a value of type t. Integer fields also take
// whole-number floats such as 11.0 or 1.1e1.
func decodeField(data []byte, t reflect.Type) (reflect.Value, error) {
	target := reflect.New(t)
	err := strictUnmarshal(data, target.Interface())
	if err == nil {
		return target.Elem(), nil
	}

	base := t
	for base.Kind() == reflect.Ptr {
		base = base.Elem()
	}
	if !isIntegerKind(base.Kind()) {
		return reflect.Value{}, err
	}

	var raw interface{}
	if strictUnmarshal(data, &raw) != nil {
		return reflect.Value{}, err
	}
	num, ok := raw.(json.Number)
	if !ok {
		return reflect.Value{}, err
	}
	f, ferr := num.Float64()
	if ferr != nil || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) >= 1<<63 {
		return reflect.Value{}, err
	}

	v := target.Elem()
	for v.Kind() == reflect.Ptr {
		v.Set(reflect.New(v.Type().Elem()))
		v = v.Elem()
	}
	switch {
	case v.CanInt():
		if v.OverflowInt(int64(f)) {
			return reflect.Value{}, err
		}
		v.SetInt(int64(f))
	default:
		if f < 0 || v.OverflowUint(uint64(f)) {
			return reflect.Value{}, err
		}
		v.SetUint(uint64(f))
	}
	return target.Elem(), nil
}

func isIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func validatorDefaultRules(err error) []ValidationError {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errs := make([]ValidationError, 0, len(validationErrors))
		for _, e := range validationErrors {
			errs = append(errs, ValidationError{
				Code:    "ERR_" + strings.ToUpper(e.Tag()),
				Field:   e.Field(),
				Message: getErrorMessage(e),
				Params:  getErrorParams(e),
			})
		}
		return errs
	}

	return []ValidationError{{
		Code:    "ERR_UNKNOWN",
		Message: err.Error(),
	}}
}

func getErrorMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

func getErrorParams(fe validator.FieldError) map[string]interface{} {
	params := make(map[string]interface{})

	switch fe.Tag() {
	case "min", "gte":
		params["min"] = fe.Param()
	case "max", "lte":
		params["max"] = fe.Param()
	case "gt", "lt":
		params["value"] = fe.Param()
	case "oneof":
		params["options"] = strings.Split(fe.Param(), " ")
	}
	if fe.Tag() != "required" {
		params["input"] = fe.Value()
	}

	return params
}

type jsonField struct {
	name  string
	index int
}

func structFields(t reflect.Type) map[string]jsonField {
	out := make(map[string]jsonField, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := jsonName(sf)
		if name == "" {
			continue
		}
		out[name] = jsonField{name: name, index: i}
	}
	return out
}

func orderedFields(fields map[string]jsonField) []jsonField {
	out := make([]jsonField, 0, len(fields))
	for _, f := range fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

func jsonName(sf reflect.StructField) string {
	name := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return sf.Name
	}
	return name
}

func describeKind(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if isIntegerKind(t.Kind()) {
		return "an integer"
	}
	switch t.Kind() {
	case reflect.Bool:
		return "a boolean"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.String:
		return "a string"
	default:
		return "a " + t.Kind().String()
	}
}
