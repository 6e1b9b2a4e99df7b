package handlers_test

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molotovsingh/personal-backup-tool/internal/fanout"
)

func TestSSEAPI_StreamsNotifications(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.Server.URL+"/api/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Give the handler a moment to register its subscriber before publishing.
	deadline := time.Now().Add(time.Second)
	for ts.Bus.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, 1, ts.Bus.SubscriberCount())

	ts.Bus.Publish(fanout.Notify(fanout.LevelInfo, "hello", ""))

	scanner := bufio.NewScanner(resp.Body)
	found := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "hello") {
			found = true
			break
		}
	}
	assert.True(t, found, "expected the notification payload on the SSE stream")
}
