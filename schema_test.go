package orca_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	orca "github.com/orcalabs/orca-go"
)

func TestValidateAlgorithmName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "pascal case",
			input:   "DataLoader",
			wantErr: false,
		},
		{
			name:    "single letter",
			input:   "A",
			wantErr: false,
		},
		{
			name:    "with digits",
			input:   "Loader2",
			wantErr: false,
		},
		{
			name:    "lowercase start",
			input:   "dataLoader",
			wantErr: true,
		},
		{
			name:    "snake case",
			input:   "data_loader",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "leading digit",
			input:   "2Loader",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := orca.ValidateAlgorithmName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAlgorithmName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, orca.ErrInvalidArgument) {
				t.Errorf("ValidateAlgorithmName(%q) error = %v, want ErrInvalidArgument", tt.input, err)
			}
		})
	}
}

func TestValidateVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "plain version",
			input:   "1.0.0",
			wantErr: false,
		},
		{
			name:    "multi digit",
			input:   "12.34.56",
			wantErr: false,
		},
		{
			name:    "missing patch",
			input:   "1.0",
			wantErr: true,
		},
		{
			name:    "leading v",
			input:   "v1.0.0",
			wantErr: true,
		},
		{
			name:    "pre-release portion",
			input:   "1.0.0-beta.1",
			wantErr: true,
		},
		{
			name:    "build metadata",
			input:   "1.0.0+build.5",
			wantErr: true,
		},
		{
			name:    "not a version",
			input:   "latest",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := orca.ValidateVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVersion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestWindow_Validate(t *testing.T) {
	tests := []struct {
		name    string
		window  orca.Window
		wantErr bool
	}{
		{
			name: "valid window",
			window: orca.Window{
				TimeFrom:          100,
				TimeTo:            200,
				WindowTypeName:    "WindowA",
				WindowTypeVersion: "1.0.0",
				Origin:            "test",
			},
			wantErr: false,
		},
		{
			name: "zero length interval",
			window: orca.Window{
				TimeFrom:          100,
				TimeTo:            100,
				WindowTypeName:    "WindowA",
				WindowTypeVersion: "1.0.0",
			},
			wantErr: false,
		},
		{
			name: "inverted interval",
			window: orca.Window{
				TimeFrom:          200,
				TimeTo:            100,
				WindowTypeName:    "WindowA",
				WindowTypeVersion: "1.0.0",
			},
			wantErr: true,
		},
		{
			name: "bad window name",
			window: orca.Window{
				TimeFrom:          100,
				TimeTo:            200,
				WindowTypeName:    "windowA",
				WindowTypeVersion: "1.0.0",
			},
			wantErr: true,
		},
		{
			name: "bad window version",
			window: orca.Window{
				TimeFrom:          100,
				TimeTo:            200,
				WindowTypeName:    "WindowA",
				WindowTypeVersion: "1.0",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.window.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Window.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAlgorithmSpec_FullName(t *testing.T) {
	spec := orca.AlgorithmSpec{Name: "DataLoader", Version: "1.0.0"}
	if got, want := spec.FullName(), "DataLoader_1.0.0"; got != want {
		t.Errorf("FullName() = %q, want %q", got, want)
	}
}

func TestNewResult(t *testing.T) {
	tests := []struct {
		name       string
		value      any
		wantStatus orca.ResultStatus
		wantSingle *float64
		wantFloats []float64
		wantStruct map[string]any
	}{
		{
			name:       "float scalar",
			value:      3.14,
			wantStatus: orca.ResultStatusSucceeded,
			wantSingle: floatPtr(3.14),
		},
		{
			name:       "int scalar",
			value:      42,
			wantStatus: orca.ResultStatusSucceeded,
			wantSingle: floatPtr(42),
		},
		{
			name:       "bool true",
			value:      true,
			wantStatus: orca.ResultStatusSucceeded,
			wantSingle: floatPtr(1),
		},
		{
			name:       "bool false",
			value:      false,
			wantStatus: orca.ResultStatusSucceeded,
			wantSingle: floatPtr(0),
		},
		{
			name:       "float slice",
			value:      []float64{1, 2, 3},
			wantStatus: orca.ResultStatusSucceeded,
			wantFloats: []float64{1, 2, 3},
		},
		{
			name:       "int slice",
			value:      []int{4, 5},
			wantStatus: orca.ResultStatusSucceeded,
			wantFloats: []float64{4, 5},
		},
		{
			name:       "mixed numeric any slice",
			value:      []any{1, 2.5},
			wantStatus: orca.ResultStatusSucceeded,
			wantFloats: []float64{1, 2.5},
		},
		{
			name:       "string map",
			value:      map[string]any{"trend": "bullish", "confidence": 0.8},
			wantStatus: orca.ResultStatusSucceeded,
			wantStruct: map[string]any{"trend": "bullish", "confidence": 0.8},
		},
		{
			name: "struct value",
			value: struct {
				Trend string `json:"trend"`
			}{Trend: "bearish"},
			wantStatus: orca.ResultStatusSucceeded,
			wantStruct: map[string]any{"trend": "bearish"},
		},
		{
			name:       "string fallback",
			value:      "hold",
			wantStatus: orca.ResultStatusSucceeded,
			wantStruct: map[string]any{"value": "hold"},
		},
		{
			name:       "unrepresentable map value",
			value:      map[string]any{"ch": make(chan int)},
			wantStatus: orca.ResultStatusHandledFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := orca.NewResult(tt.value, 123)

			if got.Status != tt.wantStatus {
				t.Fatalf("NewResult() status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.Timestamp != 123 {
				t.Errorf("NewResult() timestamp = %d, want 123", got.Timestamp)
			}

			switch {
			case tt.wantSingle != nil:
				if !got.HasSingleValue() {
					t.Fatal("NewResult() has no single value")
				}
				if *got.SingleValue != *tt.wantSingle {
					t.Errorf("NewResult() single value = %v, want %v", *got.SingleValue, *tt.wantSingle)
				}
			case tt.wantFloats != nil:
				if !got.HasFloatValues() {
					t.Fatal("NewResult() has no float values")
				}
				if !reflect.DeepEqual(got.FloatValues, tt.wantFloats) {
					t.Errorf("NewResult() float values = %v, want %v", got.FloatValues, tt.wantFloats)
				}
			case tt.wantStruct != nil:
				if !got.HasStructValue() {
					t.Fatal("NewResult() has no struct value")
				}
				if !reflect.DeepEqual(got.StructValue, tt.wantStruct) {
					t.Errorf("NewResult() struct value = %v, want %v", got.StructValue, tt.wantStruct)
				}
			}
		})
	}
}

func TestResult_EmptyVariantRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value any
		check func(t *testing.T, got orca.Result)
	}{
		{
			name:  "empty float slice",
			value: []float64{},
			check: func(t *testing.T, got orca.Result) {
				if !got.HasFloatValues() {
					t.Fatal("float values variant lost on the wire")
				}
				if len(got.FloatValues) != 0 {
					t.Errorf("FloatValues = %v, want empty", got.FloatValues)
				}
			},
		},
		{
			name:  "empty map",
			value: map[string]any{},
			check: func(t *testing.T, got orca.Result) {
				if !got.HasStructValue() {
					t.Fatal("struct value variant lost on the wire")
				}
				if len(got.StructValue) != 0 {
					t.Errorf("StructValue = %v, want empty", got.StructValue)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := orca.NewResult(tt.value, 1)
			if res.Status != orca.ResultStatusSucceeded {
				t.Fatalf("NewResult() status = %q, want succeeded", res.Status)
			}

			bs, err := json.Marshal(res)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			var got orca.Result
			if err := json.Unmarshal(bs, &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			tt.check(t, got)
		})
	}
}

func TestResult_Value(t *testing.T) {
	tests := []struct {
		name   string
		result orca.Result
		want   any
	}{
		{
			name:   "single value",
			result: orca.Result{SingleValue: floatPtr(1.5)},
			want:   1.5,
		},
		{
			name:   "float values",
			result: orca.Result{FloatValues: []float64{1, 2}},
			want:   []float64{1, 2},
		},
		{
			name:   "struct value",
			result: orca.Result{StructValue: map[string]any{"k": "v"}},
			want:   map[string]any{"k": "v"},
		},
		{
			name:   "empty",
			result: orca.Result{},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Value(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Result.Value() = %v, want %v", got, tt.want)
			}
		})
	}
}

func floatPtr(f float64) *float64 {
	return &f
}
