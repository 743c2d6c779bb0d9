package orca

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"google.golang.org/protobuf/types/known/structpb"
)

// ResultStatus classifies the outcome of a single algorithm execution.
type ResultStatus string

// ResultStatus values. A handled failure means the algorithm produced a value
// the SDK could not represent; an unhandled failure means the algorithm itself
// returned an error or panicked.
const (
	ResultStatusUnspecified     ResultStatus = ""
	ResultStatusSucceeded       ResultStatus = "succeeded"
	ResultStatusHandledFailed   ResultStatus = "handled_failed"
	ResultStatusUnhandledFailed ResultStatus = "unhandled_failed"
)

// HealthStatus reports whether a processor is able to serve execution requests.
type HealthStatus string

// HealthStatus values.
const (
	HealthStatusServing    HealthStatus = "serving"
	HealthStatusNotServing HealthStatus = "not_serving"
)

// Fully qualified gRPC service and method names for the Orca wire surface.
const (
	ProcessorServiceName = "orca.v1.OrcaProcessor"
	CoreServiceName      = "orca.v1.OrcaCore"

	methodProcessorExecuteDagPart = "/orca.v1.OrcaProcessor/ExecuteDagPart"
	methodProcessorHealthCheck    = "/orca.v1.OrcaProcessor/HealthCheck"
	methodCoreRegisterProcessor   = "/orca.v1.OrcaCore/RegisterProcessor"
	methodCoreEmitWindow          = "/orca.v1.OrcaCore/EmitWindow"
)

// WindowType identifies a kind of window by name and version.
type WindowType struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// FullName returns the window type's full name as name_version.
func (w WindowType) FullName() string {
	return w.Name + "_" + w.Version
}

// DependencyRef points at an algorithm another algorithm depends on, together
// with the processor that hosts it.
type DependencyRef struct {
	Name             string `json:"name"`
	Version          string `json:"version"`
	ProcessorName    string `json:"processorName,omitempty"`
	ProcessorRuntime string `json:"processorRuntime,omitempty"`
}

// AlgorithmSpec describes a registered algorithm on the wire: its identity,
// the window type that triggers it, and its declared dependencies.
type AlgorithmSpec struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	WindowType   WindowType      `json:"windowType"`
	Dependencies []DependencyRef `json:"dependencies,omitempty"`
}

// FullName returns the algorithm's full name as name_version. Full names key
// dependency maps and registry lookups.
func (a AlgorithmSpec) FullName() string {
	return a.Name + "_" + a.Version
}

// Window is a time interval of a given window type, emitted to Orca Core to
// trigger algorithm executions.
type Window struct {
	TimeFrom          int64  `json:"timeFrom"`
	TimeTo            int64  `json:"timeTo"`
	WindowTypeName    string `json:"windowTypeName"`
	WindowTypeVersion string `json:"windowTypeVersion"`
	Origin            string `json:"origin"`
}

// Result carries the outcome of one algorithm execution. Exactly one of
// SingleValue, FloatValues, or StructValue is set for a succeeded result;
// failed results carry error details in StructValue.
type Result struct {
	Status    ResultStatus `json:"status"`
	Timestamp int64        `json:"timestamp"`

	// FloatValues and StructValue must not be tagged omitempty: an empty
	// slice or map is a set variant and has to survive the wire.
	SingleValue *float64       `json:"singleValue,omitempty"`
	FloatValues []float64      `json:"floatValues"`
	StructValue map[string]any `json:"structValue"`
}

// HasSingleValue reports whether the single-value variant is set.
func (r Result) HasSingleValue() bool { return r.SingleValue != nil }

// HasFloatValues reports whether the float-array variant is set.
func (r Result) HasFloatValues() bool { return r.FloatValues != nil }

// HasStructValue reports whether the struct variant is set.
func (r Result) HasStructValue() bool { return r.StructValue != nil }

// Value unwraps whichever variant is set, returning a float64, []float64,
// map[string]any, or nil when no variant is populated.
func (r Result) Value() any {
	switch {
	case r.SingleValue != nil:
		return *r.SingleValue
	case r.FloatValues != nil:
		return r.FloatValues
	case r.StructValue != nil:
		return r.StructValue
	}
	return nil
}

// AlgorithmResult pairs an algorithm with the result of one of its executions.
type AlgorithmResult struct {
	Algorithm AlgorithmSpec `json:"algorithm"`
	Result    Result        `json:"result"`
}

// ExecutionRequest asks a processor to execute part of a DAG: the listed
// algorithms, with the results of already-executed upstream algorithms
// supplied as dependency inputs.
type ExecutionRequest struct {
	ExecID           string            `json:"execId"`
	Algorithms       []AlgorithmSpec   `json:"algorithms"`
	AlgorithmResults []AlgorithmResult `json:"algorithmResults,omitempty"`
}

// ExecutionResult is one streamed outcome of an ExecuteDagPart request.
type ExecutionResult struct {
	ExecID          string          `json:"execId"`
	AlgorithmResult AlgorithmResult `json:"algorithmResult"`
}

// ProcessorRegistration announces a processor to Orca Core.
type ProcessorRegistration struct {
	Name                string          `json:"name"`
	Runtime             string          `json:"runtime"`
	ConnectionStr       string          `json:"connectionStr"`
	SupportedAlgorithms []AlgorithmSpec `json:"supportedAlgorithms"`
}

// RegistrationAck is Orca Core's response to a processor registration.
type RegistrationAck struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

// EmitWindowAck is Orca Core's response to an emitted window.
type EmitWindowAck struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

// HealthCheckRequest asks a processor for its serving status.
type HealthCheckRequest struct{}

// ProcessorMetrics carries live resource figures reported by HealthCheck.
type ProcessorMetrics struct {
	ActiveTasks   int64   `json:"activeTasks"`
	MemoryBytes   uint64  `json:"memoryBytes"`
	CPUPercent    float64 `json:"cpuPercent"`
	UptimeSeconds int64   `json:"uptimeSeconds"`
}

// HealthCheckResponse reports a processor's status and metrics.
type HealthCheckResponse struct {
	Status  HealthStatus     `json:"status"`
	Message string           `json:"message,omitempty"`
	Metrics ProcessorMetrics `json:"metrics"`
}

// Algorithm and window names must be PascalCase.
var pascalCaseRE = regexp.MustCompile(`^[A-Z][a-zA-Z0-9]*$`)

// ValidateAlgorithmName checks that name is PascalCase.
func ValidateAlgorithmName(name string) error {
	if !pascalCaseRE.MatchString(name) {
		return fmt.Errorf("%w: algorithm name %q must be PascalCase", ErrInvalidArgument, name)
	}
	return nil
}

// ValidateWindowName checks that name is PascalCase.
func ValidateWindowName(name string) error {
	if !pascalCaseRE.MatchString(name) {
		return fmt.Errorf("%w: window name %q must be PascalCase", ErrInvalidArgument, name)
	}
	return nil
}

// ValidateVersion checks that version is bare major.minor.patch semver, with
// no pre-release or build-metadata portion.
func ValidateVersion(version string) error {
	v, err := semver.StrictNewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: version %q must follow semantic versioning (e.g. 1.0.0): %v",
			ErrInvalidArgument, version, err)
	}
	if v.Prerelease() != "" || v.Metadata() != "" {
		return fmt.Errorf("%w: version %q must not carry a release portion", ErrInvalidArgument, version)
	}
	return nil
}

// Validate checks a window's type name, version, and time interval.
func (w Window) Validate() error {
	if err := ValidateWindowName(w.WindowTypeName); err != nil {
		return err
	}
	if err := ValidateVersion(w.WindowTypeVersion); err != nil {
		return err
	}
	if w.TimeTo < w.TimeFrom {
		return fmt.Errorf("%w: window interval [%d, %d] is inverted", ErrInvalidArgument, w.TimeFrom, w.TimeTo)
	}
	return nil
}

// NewResult converts an algorithm's return value into a Result stamped with
// the given unix timestamp. Numeric scalars (bools counting as 0 and 1)
// become single values, numeric
// slices become float arrays, and maps or structs become struct values
// normalized through protobuf's Struct well-known type so only
// JSON-representable content passes. Values that survive none of those
// conversions degrade to a struct holding their string form; if even that
// cannot be represented, the result is a handled failure.
func NewResult(value any, timestamp int64) Result {
	res := Result{
		Status:    ResultStatusSucceeded,
		Timestamp: timestamp,
	}

	if f, ok := toFloat(value); ok {
		res.SingleValue = &f
		return res
	}
	if fs, ok := toFloatSlice(value); ok {
		res.FloatValues = fs
		return res
	}

	if m, ok := value.(map[string]any); ok {
		normalized, err := normalizeStruct(m)
		if err != nil {
			return Result{Status: ResultStatusHandledFailed, Timestamp: timestamp}
		}
		res.StructValue = normalized
		return res
	}

	// Fallback: try the value's JSON shape, then its string form.
	m, err := structFromValue(value)
	if err != nil {
		m = map[string]any{"value": fmt.Sprint(value)}
	}
	normalized, err := normalizeStruct(m)
	if err != nil {
		return Result{Status: ResultStatusHandledFailed, Timestamp: timestamp}
	}
	res.StructValue = normalized
	return res
}

// failureResult builds an unhandled-failure Result carrying the error message
// and stack trace of a failed algorithm execution.
func failureResult(err error, stack string, timestamp int64) Result {
	return Result{
		Status:    ResultStatusUnhandledFailed,
		Timestamp: timestamp,
		StructValue: map[string]any{
			"error":       err.Error(),
			"stack_trace": stack,
		},
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

func toFloatSlice(value any) ([]float64, bool) {
	switch v := value.(type) {
	case []float64:
		out := make([]float64, len(v))
		copy(out, v)
		return out, true
	case []float32:
		out := make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
		return out, true
	case []int:
		out := make([]float64, len(v))
		for i, n := range v {
			out[i] = float64(n)
		}
		return out, true
	case []int64:
		out := make([]float64, len(v))
		for i, n := range v {
			out[i] = float64(n)
		}
		return out, true
	case []any:
		out := make([]float64, len(v))
		for i, e := range v {
			f, ok := toFloat(e)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	}
	return nil, false
}

// normalizeStruct round-trips a map through structpb.Struct, rejecting values
// that have no protobuf Struct representation and normalizing numbers to
// float64.
func normalizeStruct(m map[string]any) (map[string]any, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("failed to convert result to struct: %w", err)
	}
	return st.AsMap(), nil
}

// structFromValue exposes an arbitrary value's fields as a map via its JSON
// encoding.
func structFromValue(value any) (map[string]any, error) {
	bs, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(bs, &m); err != nil {
		return nil, err
	}
	return m, nil
}
