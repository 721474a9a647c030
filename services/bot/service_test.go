package botsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackwise/core"
	logsvc "github.com/trezcool/trackwise/services/logger"
)

func newBotConf(apiURL, apiKey string) *core.Config {
	return &core.Config{
		Bot: core.BotConfig{APIURL: apiURL, APIKey: apiKey, Timeout: 2 * time.Second},
	}
}

func TestHTTPService_Reply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "summarize chapter 3", req.Prompt)

		_ = json.NewEncoder(w).Encode(generateResponse{Text: "Chapter 3 covers sorting."})
	}))
	defer srv.Close()

	svc := NewHTTPService(newBotConf(srv.URL, "sekrit"), logsvc.NewConsoleLogger())
	reply, err := svc.Reply(context.Background(), "summarize chapter 3")
	require.NoError(t, err)
	assert.Equal(t, "Chapter 3 covers sorting.", reply)
}

func TestHTTPService_Reply_upstreamFailureFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "server error", handler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{name: "garbage body", handler: func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
		{name: "empty reply", handler: func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(generateResponse{})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			svc := NewHTTPService(newBotConf(srv.URL, ""), logsvc.NewConsoleLogger())
			reply, err := svc.Reply(context.Background(), "need a pomodoro tip")
			require.NoError(t, err)
			assert.Equal(t, FallbackReply("need a pomodoro tip"), reply)
		})
	}
}

func TestHTTPService_Reply_noAPIConfigured(t *testing.T) {
	svc := NewHTTPService(newBotConf("", ""), logsvc.NewConsoleLogger())
	reply, err := svc.Reply(context.Background(), "how do I plan my week?")
	require.NoError(t, err)
	assert.Equal(t, FallbackReply("how do I plan my week?"), reply)
}

func TestFallbackReply(t *testing.T) {
	assert.Contains(t, FallbackReply("what is the Pomodoro technique?"), "25 minute")
	assert.Contains(t, FallbackReply("help me plan my exams"), "small tasks")
	assert.Contains(t, FallbackReply("I need motivation"), "progress page")
	assert.Contains(t, FallbackReply("quantum gravity"), `"quantum gravity"`)
}
