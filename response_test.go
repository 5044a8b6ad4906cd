package oauth

import (
	"net/http"
	"testing"
)

func TestNewResponse(t *testing.T) {
	res := NewResponse(ResponseOptions{Headers: map[string]string{"X-Custom": "1"}})
	if res.Status != http.StatusOK {
		t.Errorf("Status = %d", res.Status)
	}
	if res.Body == nil || len(res.Body) != 0 {
		t.Errorf("Body = %v, want empty map", res.Body)
	}
	if res.Get("x-custom") != "1" {
		t.Errorf("Headers = %v", res.Headers)
	}
}

func TestResponse_Redirect(t *testing.T) {
	res := NewResponse(ResponseOptions{})
	res.Redirect("https://client.example.com/cb?code=abc")
	if res.Status != http.StatusFound {
		t.Errorf("Status = %d, want 302", res.Status)
	}
	if res.Get("Location") != "https://client.example.com/cb?code=abc" {
		t.Errorf("Location = %q", res.Get("Location"))
	}
}

func TestResponse_SetError(t *testing.T) {
	res := NewResponse(ResponseOptions{Body: map[string]any{"access_token": "stale"}})
	res.SetError(NewInvalidClientError("Invalid client: client is invalid"))

	if res.Status != http.StatusBadRequest {
		t.Errorf("Status = %d", res.Status)
	}
	want := map[string]any{"error": "invalid_client", "error_description": "Invalid client: client is invalid"}
	if len(res.Body) != len(want) {
		t.Fatalf("Body = %v", res.Body)
	}
	for k, v := range want {
		if res.Body[k] != v {
			t.Errorf("Body[%s] = %v, want %v", k, res.Body[k], v)
		}
	}
}
