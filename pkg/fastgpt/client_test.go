package fastgpt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zihaomo080808/FileprocessingFastGPT/internal/resilience"
)

func noRetry() Option {
	return WithRetry(resilience.Policy{Attempts: 1})
}

func TestChatCompletion(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     string
		wantContent string
	}{
		{
			name:        "success",
			status:      http.StatusOK,
			body:        `{"id":"c1","choices":[{"index":0,"message":{"role":"assistant","content":"甲|||乙"}}],"usage":{"total_tokens":9}}`,
			wantContent: "甲|||乙",
		},
		{
			name:    "bad_request",
			status:  http.StatusBadRequest,
			body:    `{"message":"bad"}`,
			wantErr: "unexpected status 400",
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `{invalid json`,
			wantErr: "unmarshal response",
		},
		{
			name:    "error_object",
			status:  http.StatusOK,
			body:    `{"error":{"message":"quota"}}`,
			wantErr: "service error",
		},
		{
			name:    "no_choices",
			status:  http.StatusOK,
			body:    `{"id":"c2","choices":[]}`,
			wantErr: "no choices",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(srv.URL+"/api/v1/chat/completions", "test-key", noRetry())
			resp, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
				Messages: []Message{{Role: "user", Content: "问题"}},
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, resp)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, resp.Content())
		})
	}
}

func TestChatCompletion_RequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, "000", raw["chatId"])
		assert.Equal(t, false, raw["stream"])
		assert.Equal(t, false, raw["detail"])
		_, hasModel := raw["model"]
		assert.False(t, hasModel)
		msgs := raw["messages"].([]any)
		require.Len(t, msgs, 1)
		assert.Equal(t, "user", msgs[0].(map[string]any)["role"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", noRetry())
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
}

func TestChatCompletion_ContextLength(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusBadRequest} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"code":"context_length_exceeded","message":"This model's maximum context length is 8192 tokens"}}`))
		}))

		client := NewClient(srv.URL, "k", noRetry())
		_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrContextLength), "status %d", status)
		srv.Close()
	}
}

func TestChatCompletion_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"done"}}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", WithRetry(resilience.Policy{
		Attempts:   3,
		Backoff:    time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
	}))
	resp, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content())
	assert.Equal(t, int32(3), calls.Load())
}

func TestChatCompletion_PermanentStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", WithRetry(resilience.Policy{Attempts: 3, Backoff: time.Millisecond}))
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatCompletion_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", noRetry(), WithTimeout(20*time.Millisecond))
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send request")
}

func TestContent_Empty(t *testing.T) {
	var r *ChatCompletionResponse
	assert.Equal(t, "", r.Content())
	assert.Equal(t, "", (&ChatCompletionResponse{}).Content())
}
