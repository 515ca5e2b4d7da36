package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseChatRequest_AppliesDefaults(t *testing.T) {
	req, err := ParseChatRequest([]byte(`{"messages":[{"role":"user","content":"hi"}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Temperature != DefaultTemperature {
		t.Fatalf("expected default temperature, got %v", req.Temperature)
	}
	if req.MaxTokens != DefaultMaxTokens {
		t.Fatalf("expected default max tokens, got %d", req.MaxTokens)
	}
	if len(req.Messages) != 1 || string(req.Messages[0]) != `{"role":"user","content":"hi"}` {
		t.Fatalf("expected message to be kept verbatim, got %s", req.Messages)
	}
}

func TestParseChatRequest_ReadsOptionalFields(t *testing.T) {
	req, err := ParseChatRequest([]byte(`{"messages":[],"temperature":0.2,"max_tokens":123}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Temperature != 0.2 || req.MaxTokens != 123 {
		t.Fatalf("unexpected values %+v", req)
	}
	if req.Messages == nil {
		t.Fatalf("expected empty, non-nil messages")
	}
}

func TestParseChatRequest_InvalidFormat(t *testing.T) {
	cases := map[string]string{
		"missing messages": `{"temperature":0.5}`,
		"null messages":    `{"messages":null}`,
		"object messages":  `{"messages":{"role":"user"}}`,
		"string messages":  `{"messages":"hi"}`,
		"not json":         `messages=hi`,
		"empty body":       ``,
		"top-level array":  `[{"role":"user"}]`,
		"json null":        `null`,
		"bad temperature":  `{"messages":[],"temperature":"hot"}`,
		"string max":       `{"messages":[],"max_tokens":"100"}`,
		"fraction max":     `{"messages":[],"max_tokens":2.5}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseChatRequest([]byte(body))
			if !errors.Is(err, ErrInvalidFormat) {
				t.Fatalf("expected ErrInvalidFormat, got %v", err)
			}
			var fe *FormatError
			if !errors.As(err, &fe) || fe.Details == "" {
				t.Fatalf("expected FormatError with details, got %v", err)
			}
		})
	}
}

func TestParseChatRequest_CapsAnyIntegerMaxTokens(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want int
	}{
		"plain":        {`10000`, 4000},
		"exponent":     {`1e4`, 4000},
		"out of range": {`99999999999999999999`, 4000},
		"float form":   {`100.0`, 100},
		"small exp":    {`1.5e2`, 150},
		"negative":     {`-5`, -5},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			req, err := ParseChatRequest([]byte(`{"messages":[],"max_tokens":` + c.raw + `}`))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := CapMaxTokens(req.MaxTokens); got != c.want {
				t.Fatalf("max_tokens %s: got %d, want %d", c.raw, got, c.want)
			}
		})
	}
}

func TestParseChatRequest_FractionalMaxTokensDetails(t *testing.T) {
	_, err := ParseChatRequest([]byte(`{"messages":[],"max_tokens":2.5}`))
	var fe *FormatError
	if !errors.As(err, &fe) || fe.Details != "max_tokens must be an integer" {
		t.Fatalf("expected max_tokens details, got %v", err)
	}
}

func TestClampTemperature(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-5, 0},
		{5, 1},
		{0.3, 0.3},
		{0, 0},
		{1, 1},
	}
	for _, c := range cases {
		if got := ClampTemperature(c.in); got != c.want {
			t.Fatalf("ClampTemperature(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestCapMaxTokens(t *testing.T) {
	cases := []struct{ in, want int }{
		{10000, 4000},
		{4000, 4000},
		{100, 100},
	}
	for _, c := range cases {
		if got := CapMaxTokens(c.in); got != c.want {
			t.Fatalf("CapMaxTokens(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestNormalize_FixesModelAndClamps(t *testing.T) {
	req := ChatRequest{
		Messages:    []json.RawMessage{json.RawMessage(`{"role":"user","content":"x"}`)},
		Temperature: 7,
		MaxTokens:   9000,
	}

	up := Normalize(req, "")
	if up.Model != DefaultModel {
		t.Fatalf("expected default model, got %q", up.Model)
	}
	if up.Temperature != 1 || up.MaxTokens != 4000 {
		t.Fatalf("expected clamped values, got %+v", up)
	}

	body, err := json.Marshal(up)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"model":"deepseek-chat","messages":[{"role":"user","content":"x"}],"temperature":1,"max_tokens":4000}`
	if string(body) != want {
		t.Fatalf("unexpected wire body:\n got %s\nwant %s", body, want)
	}
}
