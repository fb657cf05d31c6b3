package classify

import (
	"testing"
)

func TestParseJSONResponsePlain(t *testing.T) {
	result := ParseJSONResponse(`{"classification": "REAL", "confidenceScore": 0.9}`)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["classification"] != "REAL" {
		t.Errorf("expected classification='REAL', got %v", result["classification"])
	}
	if result["confidenceScore"] != 0.9 {
		t.Errorf("expected confidenceScore=0.9, got %v", result["confidenceScore"])
	}
}

func TestParseJSONResponseWithCodeFence(t *testing.T) {
	text := "```json\n{\"classification\": \"FAKE\"}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["classification"] != "FAKE" {
		t.Errorf("expected classification='FAKE', got %v", result["classification"])
	}
}

func TestParseJSONResponseWithPlainFence(t *testing.T) {
	text := "```\n{\"classification\": \"REAL\"}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	if result := ParseJSONResponse("not json at all"); result != nil {
		t.Error("expected nil for invalid JSON")
	}
}

func TestParseJSONResponseEmpty(t *testing.T) {
	if result := ParseJSONResponse(""); result != nil {
		t.Error("expected nil for empty string")
	}
}

func TestGetStringFallbackOnEmpty(t *testing.T) {
	m := map[string]any{"sourceCredibility": ""}
	if got := getString(m, "sourceCredibility", "fallback"); got != "fallback" {
		t.Errorf("expected fallback for empty string, got %q", got)
	}
}

func TestGetFloatWrongType(t *testing.T) {
	m := map[string]any{"confidenceScore": "high"}
	if got := getFloat(m, "confidenceScore", 0); got != 0 {
		t.Errorf("expected fallback 0, got %v", got)
	}
}
