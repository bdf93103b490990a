package nlu

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chatCompletionServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const toolCallResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "llama-test",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": null,
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "check_availability", "arguments": "{\"confidence\":0.88,\"check_in\":\"12 March\"}"}
      }]
    }
  }],
  "usage": {"prompt_tokens": 120, "completion_tokens": 20, "total_tokens": 140}
}`

func TestOpenAIClassifier_Classify(t *testing.T) {
	t.Parallel()

	var req map[string]any
	srv := chatCompletionServer(t, http.StatusOK, toolCallResponse, &req)

	c, err := newOpenAIClassifier(ProviderGroq, "test-key", "llama-test", srv.URL+"/")
	if err != nil {
		t.Fatalf("newOpenAIClassifier() error = %v", err)
	}

	res, err := c.Classify(context.Background(), "Can I stay from 12 March?")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if top := res.Top(); top.Name != CheckAvailability || top.Score != 0.88 {
		t.Errorf("Top() = %+v", top)
	}
	if e, ok := res.Entity(EntityCheckIn); !ok || e.Value != "12 March" {
		t.Errorf("check-in entity = %+v, %v", e, ok)
	}
	if res.Provider != ProviderGroq || res.Model != "llama-test" {
		t.Errorf("provider/model = %s/%s", res.Provider, res.Model)
	}

	if req["tool_choice"] != "required" {
		t.Errorf("tool_choice = %v, want required", req["tool_choice"])
	}
	tools, _ := req["tools"].([]any)
	if len(tools) != len(BuildIntentFunctions()) {
		t.Errorf("sent %d tools, want %d", len(tools), len(BuildIntentFunctions()))
	}
}

func TestOpenAIClassifier_HTTPError(t *testing.T) {
	t.Parallel()

	srv := chatCompletionServer(t, http.StatusUnauthorized, `{"error":{"message":"bad key","type":"auth","code":"invalid_api_key","param":null}}`, nil)
	c, err := newOpenAIClassifier(ProviderCerebras, "bad", "m", srv.URL+"/")
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Classify(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if ClassifyError(err) != ActionFail {
		t.Errorf("401 should classify as fail, got %v (%v)", ClassifyError(err), err)
	}
}

func TestNewOpenAIClassifier(t *testing.T) {
	t.Parallel()

	c, err := newOpenAIClassifier(ProviderGroq, "", "", "")
	if err != nil || c != nil {
		t.Errorf("empty key should disable the provider, got %v, %v", c, err)
	}

	c, err = newOpenAIClassifier(ProviderCerebras, "k", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.model != DefaultCerebrasModels[0] {
		t.Errorf("default model = %q", c.model)
	}

	if _, err := newOpenAIClassifier(ProviderLUIS, "k", "", ""); err == nil {
		t.Error("LUIS is not OpenAI-compatible")
	}
}

func TestBuildOpenAITools_LowercaseTypes(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(buildOpenAITools())
	if err != nil {
		t.Fatal(err)
	}
	s := string(raw)
	if strings.Contains(s, `"NUMBER"`) || strings.Contains(s, `"STRING"`) {
		t.Errorf("tool schema has uppercase types: %s", s)
	}
	if !strings.Contains(s, `"number"`) {
		t.Errorf("tool schema missing number type: %s", s)
	}
}

func TestOpenAICorrector(t *testing.T) {
	t.Parallel()

	body := `{"id":"c","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  I want to book a room  "}}]}`
	srv := chatCompletionServer(t, http.StatusOK, body, nil)

	c, err := newOpenAICorrector(ProviderGroq, "k", "m", srv.URL+"/")
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Correct(context.Background(), "I wnat to bok a room")
	if err != nil {
		t.Fatalf("Correct() error = %v", err)
	}
	if got != "I want to book a room" {
		t.Errorf("Correct() = %q", got)
	}
}
