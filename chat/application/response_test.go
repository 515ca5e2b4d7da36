package application

import (
	"encoding/json"
	"net/http"
	"testing"

	"chat-gateway/chat/domain"
)

func TestTranslate_Table(t *testing.T) {
	cases := []struct {
		name    string
		outcome domain.Outcome
		status  int
		body    string
	}{
		{
			name:    "success passthrough",
			outcome: domain.Success{Status: 200, Body: []byte(`{"ok":true}`)},
			status:  http.StatusOK,
			body:    `{"ok":true}`,
		},
		{
			name:    "upstream error with string error",
			outcome: domain.UpstreamError{Status: 503, Body: []byte(`{"error":"x"}`)},
			status:  503,
			body:    `{"error":"API Error","details":"x","status":503}`,
		},
		{
			name:    "upstream error with object error",
			outcome: domain.UpstreamError{Status: 401, Body: []byte(`{"error":{"message":"bad key","type":"auth"}}`)},
			status:  401,
			body:    `{"error":"API Error","details":{"message":"bad key","type":"auth"},"status":401}`,
		},
		{
			name:    "upstream error without error field",
			outcome: domain.UpstreamError{Status: 502, Body: []byte(`<html>bad gateway</html>`)},
			status:  502,
			body:    `{"error":"API Error","details":"Error from DeepSeek API","status":502}`,
		},
		{
			name:    "upstream error with empty error",
			outcome: domain.UpstreamError{Status: 400, Body: []byte(`{"error":""}`)},
			status:  400,
			body:    `{"error":"API Error","details":"Error from DeepSeek API","status":400}`,
		},
		{
			name:    "no response",
			outcome: domain.NoResponse{},
			status:  http.StatusGatewayTimeout,
			body:    `{"error":"Gateway Timeout","details":"No response received from DeepSeek API"}`,
		},
		{
			name:    "setup error",
			outcome: domain.SetupError{Message: "bad url"},
			status:  http.StatusInternalServerError,
			body:    `{"error":"Internal Server Error","details":"bad url"}`,
		},
		{
			name:    "nil outcome",
			outcome: nil,
			status:  http.StatusInternalServerError,
			body:    `{"error":"Internal Server Error","details":"no upstream outcome"}`,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp := Translate(c.outcome)
			if resp.Status != c.status {
				t.Fatalf("expected status %d, got %d", c.status, resp.Status)
			}
			if !jsonEqual(t, resp.Body, []byte(c.body)) {
				t.Fatalf("unexpected body:\n got %s\nwant %s", resp.Body, c.body)
			}
		})
	}
}

func jsonEqual(t *testing.T, a, b []byte) bool {
	t.Helper()
	var va, vb any
	if err := json.Unmarshal(a, &va); err != nil {
		t.Fatalf("decode %s: %v", a, err)
	}
	if err := json.Unmarshal(b, &vb); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	ja, _ := json.Marshal(va)
	jb, _ := json.Marshal(vb)
	return string(ja) == string(jb)
}
