package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feeledger_app_echo/internal/config"
)

func TestNormalizeChatID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "phone number without country code",
			input:    "081246361829",
			expected: "6281246361829@c.us",
		},
		{
			name:     "phone number with country code",
			input:    "6281246361829",
			expected: "6281246361829@c.us",
		},
		{
			name:     "phone number with plus sign",
			input:    "+6281246361829",
			expected: "6281246361829@c.us",
		},
		{
			name:     "group id",
			input:    "120363407813232111@g.us",
			expected: "120363407813232111@g.us",
		},
		{
			name:     "phone number without country code, with suffix",
			input:    "081246361829@c.us",
			expected: "6281246361829@c.us",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeChatID(tt.input))
		})
	}
}

func TestWahaSendMessage(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	var text map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
		mu.Lock()
		defer mu.Unlock()
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/api/sendText" {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&text))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	svc := NewWahaService(config.WAHAConfig{BaseURL: srv.URL + "/", APIKey: "key"})
	svc.pause = func(context.Context, time.Duration) error { return nil }

	require.NoError(t, svc.Send(context.Background(), "0812", "Receipt 7", "paid"))

	assert.Equal(t, []string{"/api/sendSeen", "/api/startTyping", "/api/stopTyping", "/api/sendText"}, paths)
	assert.Equal(t, "62812@c.us", text["chatId"])
	assert.Equal(t, "paid", text["text"])
	assert.Equal(t, "default", text["session"])
}

func TestWahaSendMessageFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session stopped", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	svc := NewWahaService(config.WAHAConfig{BaseURL: srv.URL})
	svc.pause = func(context.Context, time.Duration) error { return nil }

	err := svc.Send(context.Background(), "0812", "", "paid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session stopped")
}
