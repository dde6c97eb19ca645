package commandstructure

import (
	"testing"
)

func TestGetStringParam(t *testing.T) {
	params := map[string]any{
		"path":  "Dalle_template.png",
		"width": 942,
	}

	if val := GetStringParam(params, "path", "default"); val != "Dalle_template.png" {
		t.Errorf("Expected 'Dalle_template.png', got '%s'", val)
	}
	if val := GetStringParam(params, "width", "default"); val != "default" {
		t.Errorf("Expected 'default' for non-string value, got '%s'", val)
	}
	if val := GetStringParam(params, "missing", "default"); val != "default" {
		t.Errorf("Expected 'default', got '%s'", val)
	}
}

func TestGetIntParam(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected int
	}{
		{name: "int", value: 942, expected: 942},
		{name: "int64", value: int64(456), expected: 456},
		{name: "float64", value: float64(789), expected: 789},
		{name: "string falls back", value: "not-an-int", expected: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := map[string]any{"key": tt.value}
			if val := GetIntParam(params, "key", -1); val != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, val)
			}
		})
	}

	if val := GetIntParam(map[string]any{}, "missing", 999); val != 999 {
		t.Errorf("Expected 999, got %d", val)
	}
}

func TestValidateRequiredParams(t *testing.T) {
	params := map[string]any{
		"width":  942,
		"height": 942,
	}

	if err := ValidateRequiredParams(params, []string{"width", "height"}); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := ValidateRequiredParams(params, []string{"width", "path"}); err == nil {
		t.Error("Expected error for missing required param")
	}
	if err := ValidateRequiredParams(params, nil); err != nil {
		t.Errorf("Expected no error for empty required list, got %v", err)
	}
}
