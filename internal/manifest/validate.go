package manifest

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"time"
)

func checkPattern(pattern string) error {
	_, err := regexp.Compile(pattern)
	return err
}

// FieldError is one validation failure, anchored to a dotted/indexed field
// path (e.g. "items[2].name").
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Report is the outcome of validating one value against the manifest:
// pure in the sense that equal (manifest, request, args) triples produce
// equal reports modulo ValidationTime.
type Report struct {
	Valid           bool         `json:"valid"`
	Errors          []FieldError `json:"errors"`
	FieldsValidated int          `json:"fields_validated"`
	ValidationTime  float64      `json:"validation_time"`
}

func newReport() *Report {
	return &Report{Valid: true, Errors: []FieldError{}}
}

// fail records an error, keeping Errors ordered by field then message so
// the report does not depend on map iteration order.
func (r *Report) fail(field, message string) {
	r.Valid = false
	i := sort.Search(len(r.Errors), func(i int) bool {
		e := r.Errors[i]
		return e.Field > field || (e.Field == field && e.Message > message)
	})
	r.Errors = append(r.Errors, FieldError{})
	copy(r.Errors[i+1:], r.Errors[i:])
	r.Errors[i] = FieldError{Field: field, Message: message}
}

// Validator runs request/response validation against a single Manifest.
type Validator struct {
	manifest *Manifest
}

// NewValidator binds a Validator to m.
func NewValidator(m *Manifest) *Validator {
	return &Validator{manifest: m}
}

// ValidateRequest checks args against the argument schema registered for
// requestName. A request name absent from the manifest is itself a field
// error attached to "request", not a Go error.
func (v *Validator) ValidateRequest(requestName string, args map[string]interface{}) *Report {
	start := time.Now()
	report := newReport()

	spec, ok := v.manifest.Requests[requestName]
	if !ok {
		report.fail("request", fmt.Sprintf("request '%s' not found in manifest", requestName))
		report.ValidationTime = elapsedMS(start)
		return report
	}

	for name, argSpec := range spec.Args {
		value, present := args[name]
		if !present || value == nil {
			if argSpec.Required {
				report.fail(name, "Required field is missing")
			}
			continue
		}
		v.validateValue(value, argSpec, name, report)
	}
	for name := range args {
		if _, known := spec.Args[name]; !known {
			report.fail(name, "unknown argument")
		}
	}
	report.FieldsValidated = len(spec.Args)
	report.ValidationTime = elapsedMS(start)
	return report
}

// ValidateResponse checks payload (already JSON-decoded into Go values)
// against the response schema registered for requestName.
func (v *Validator) ValidateResponse(requestName string, payload interface{}) *Report {
	start := time.Now()
	report := newReport()

	spec, ok := v.manifest.Requests[requestName]
	if !ok {
		report.fail("request", fmt.Sprintf("request '%s' not found in manifest", requestName))
		report.ValidationTime = elapsedMS(start)
		return report
	}
	if spec.Response == nil {
		report.fail("response", fmt.Sprintf("no response manifest defined for request '%s'", requestName))
		report.ValidationTime = elapsedMS(start)
		return report
	}

	v.validateValue(payload, spec.Response, "", report)
	report.FieldsValidated = countFields(spec.Response)
	report.ValidationTime = elapsedMS(start)
	return report
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Nanoseconds()) / 1e6
}

func (v *Validator) resolveRef(ref string) *ArgSpec {
	model, ok := v.manifest.Models[ref]
	if !ok {
		return nil
	}
	return &ArgSpec{Type: model.Type, Properties: model.Properties, Required: false, requiredProps: model.Required}
}

func (v *Validator) validateValue(value interface{}, spec *ArgSpec, fieldPath string, report *Report) {
	if spec.ModelRef != "" {
		resolved := v.resolveRef(spec.ModelRef)
		if resolved == nil {
			report.fail(fieldPath, fmt.Sprintf("model reference '%s' not found", spec.ModelRef))
			return
		}
		v.validateValue(value, resolved, fieldPath, report)
		return
	}

	if !v.validateType(value, spec.Type, fieldPath, report) {
		return
	}

	switch spec.Type {
	case "string":
		v.validateString(value.(string), spec, fieldPath, report)
	case "number", "integer":
		v.validateNumber(numericValue(value), spec, fieldPath, report)
	case "array":
		v.validateArray(value.([]interface{}), spec, fieldPath, report)
	case "object":
		v.validateObject(value.(map[string]interface{}), spec, fieldPath, report)
	}

	if spec.Validation != nil && len(spec.Validation.Enum) > 0 {
		v.validateEnum(value, spec.Validation.Enum, fieldPath, report)
	}
}

func (v *Validator) validateType(value interface{}, expected, fieldPath string, report *Report) bool {
	switch expected {
	case "string":
		if _, ok := value.(string); !ok {
			report.fail(fieldPath, "expected string type")
			return false
		}
	case "number":
		if !isNumeric(value) {
			report.fail(fieldPath, "expected number type")
			return false
		}
	case "integer":
		if !isNumeric(value) || !isIntegerValued(value) {
			report.fail(fieldPath, "expected integer type")
			return false
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			report.fail(fieldPath, "expected boolean type")
			return false
		}
	case "array":
		if _, ok := value.([]interface{}); !ok {
			report.fail(fieldPath, "expected array type")
			return false
		}
	case "object":
		if _, ok := value.(map[string]interface{}); !ok {
			report.fail(fieldPath, "expected object type")
			return false
		}
	default:
		report.fail(fieldPath, fmt.Sprintf("unknown type '%s' in manifest", expected))
		return false
	}
	return true
}

func (v *Validator) validateString(value string, spec *ArgSpec, fieldPath string, report *Report) {
	if spec.Validation == nil {
		return
	}
	val := spec.Validation
	if val.MinLength != nil && len(value) < *val.MinLength {
		report.fail(fieldPath, fmt.Sprintf("string length %d is less than minimum %d", len(value), *val.MinLength))
	}
	if val.MaxLength != nil && len(value) > *val.MaxLength {
		report.fail(fieldPath, fmt.Sprintf("string length %d exceeds maximum %d", len(value), *val.MaxLength))
	}
	if val.Pattern != "" {
		re, err := regexp.Compile(val.Pattern)
		if err != nil {
			report.fail(fieldPath, "invalid regex pattern in manifest")
			return
		}
		if !re.MatchString(value) {
			report.fail(fieldPath, fmt.Sprintf("value does not match pattern %s", val.Pattern))
		}
	}
}

func (v *Validator) validateNumber(value float64, spec *ArgSpec, fieldPath string, report *Report) {
	if spec.Validation == nil {
		return
	}
	val := spec.Validation
	if val.Minimum != nil && value < *val.Minimum {
		report.fail(fieldPath, fmt.Sprintf("value %g is less than minimum %g", value, *val.Minimum))
	}
	if val.Maximum != nil && value > *val.Maximum {
		report.fail(fieldPath, fmt.Sprintf("value %g exceeds maximum %g", value, *val.Maximum))
	}
}

func (v *Validator) validateArray(value []interface{}, spec *ArgSpec, fieldPath string, report *Report) {
	if spec.Items == nil {
		return
	}
	for i, item := range value {
		v.validateValue(item, spec.Items, fmt.Sprintf("%s[%d]", fieldPath, i), report)
	}
}

func (v *Validator) validateObject(value map[string]interface{}, spec *ArgSpec, fieldPath string, report *Report) {
	if spec.Properties == nil {
		return
	}
	for name, propSpec := range spec.Properties {
		propPath := name
		if fieldPath != "" {
			propPath = fieldPath + "." + name
		}
		propValue, exists := value[name]
		required := propSpec.Required || containsStr(spec.requiredProps, name)
		if !exists || propValue == nil {
			if required {
				report.fail(propPath, "Required field is missing")
			}
			continue
		}
		v.validateValue(propValue, propSpec, propPath, report)
	}
}

func (v *Validator) validateEnum(value interface{}, enum []interface{}, fieldPath string, report *Report) {
	for _, candidate := range enum {
		if deepEqualJSON(value, candidate) {
			return
		}
	}
	report.fail(fieldPath, fmt.Sprintf("value not in allowed enum values: %v", enum))
}

func deepEqualJSON(a, b interface{}) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	an, aok := numericValueOK(a)
	bn, bok := numericValueOK(b)
	if aok && bok {
		return an == bn
	}
	return false
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func isNumeric(value interface{}) bool {
	_, ok := numericValueOK(value)
	return ok
}

func isIntegerValued(value interface{}) bool {
	n, ok := numericValueOK(value)
	if !ok {
		return false
	}
	return n == float64(int64(n))
}

func numericValue(value interface{}) float64 {
	n, _ := numericValueOK(value)
	return n
}

func numericValueOK(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func countFields(spec *ArgSpec) int {
	if spec.Type == "object" && spec.Properties != nil {
		return len(spec.Properties)
	}
	return 1
}
