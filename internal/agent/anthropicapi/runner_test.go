package anthropicapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Iron-Ham/agentops/internal/agent"
)

type recordingSession struct {
	mu       sync.Mutex
	messages []string
}

func (s *recordingSession) Emit(raw json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, string(raw))
}

func (s *recordingSession) Ask(context.Context, string, json.RawMessage) (map[string]string, error) {
	return map[string]string{}, nil
}

var streamEvents = []string{
	`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"test-model","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":5,"output_tokens":1}}}`,
	`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
	`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`,
	`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" world"}}`,
	`{"type":"content_block_stop","index":0}`,
	`{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":2}}`,
	`{"type":"message_stop"}`,
}

func streamServer(t *testing.T, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, gotBody)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, data := range streamEvents {
			var head struct {
				Type string `json:"type"`
			}
			_ = json.Unmarshal([]byte(data), &head)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", head.Type, data)
		}
	}))
}

func TestRun(t *testing.T) {
	var body map[string]any
	srv := streamServer(t, &body)
	defer srv.Close()

	r := New(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"}, nil, option.WithMaxRetries(0))
	s := &recordingSession{}
	err := r.Run(context.Background(), agent.Request{ID: "t1", Prompt: "say hello", Options: agent.Options{Cwd: "/repo"}}, s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(s.messages) != 2 {
		t.Fatalf("messages = %v", s.messages)
	}
	text := agent.ParseMessage(s.messages[0])
	if len(text) != 1 || text[0].Kind != agent.EntryText || text[0].Content != "Hello world" {
		t.Errorf("assistant entries = %+v", text)
	}
	result := agent.ParseMessage(s.messages[1])
	if len(result) != 1 || result[0].Kind != agent.EntryResult {
		t.Errorf("result entries = %+v", result)
	}

	if body["model"] != "test-model" || body["stream"] != true {
		t.Errorf("request body = %v", body)
	}
	if !strings.Contains(fmt.Sprint(body["system"]), "/repo") {
		t.Errorf("system prompt = %v", body["system"])
	}
}

func TestRun_RequestModelOverrides(t *testing.T) {
	var body map[string]any
	srv := streamServer(t, &body)
	defer srv.Close()

	r := New(Config{APIKey: "k", BaseURL: srv.URL}, nil, option.WithMaxRetries(0))
	if err := r.Run(context.Background(), agent.Request{Prompt: "p", Options: agent.Options{Model: "other"}}, &recordingSession{}); err != nil {
		t.Fatal(err)
	}
	if body["model"] != "other" {
		t.Errorf("model = %v", body["model"])
	}
	if _, ok := body["system"]; ok {
		t.Error("system prompt should be omitted without a cwd")
	}
}

func TestRun_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad model"}}`)
	}))
	defer srv.Close()

	r := New(Config{APIKey: "k", BaseURL: srv.URL}, nil, option.WithMaxRetries(0))
	s := &recordingSession{}
	err := r.Run(context.Background(), agent.Request{Prompt: "p"}, s)
	if err == nil || !strings.Contains(err.Error(), "anthropic api error") {
		t.Errorf("err = %v", err)
	}
	if len(s.messages) != 0 {
		t.Errorf("no messages expected on error, got %v", s.messages)
	}
}

func TestNewDefaults(t *testing.T) {
	r := New(Config{}, nil)
	if r.cfg.Model != DefaultModel || r.cfg.MaxTokens != DefaultMaxTokens {
		t.Errorf("cfg = %+v", r.cfg)
	}
}
