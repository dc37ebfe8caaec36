package sabnzbd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "addurl", r.URL.Query().Get("mode"))
		w.Write([]byte(`{"status":true,"nzo_ids":["SABnzbd_nzo_xyz"]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	nzoID, err := c.AddURL(context.Background(), "https://example.com/a.nzb", "movies", PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, "SABnzbd_nzo_xyz", nzoID)
}

func TestAddURLFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":false,"error":"duplicate"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	_, err := c.AddURL(context.Background(), "https://example.com/a.nzb", "", "")
	assert.ErrorContains(t, err, "duplicate")
}

func TestGetQueueParsesDiskSpace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"queue":{"slots":[{"nzo_id":"n1","filename":"f","status":"Downloading","percentage":"42"}],"diskspace1":"12.3","diskspace2":"10.0"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	q, err := c.GetQueue(context.Background())
	require.NoError(t, err)
	require.Len(t, q.Slots, 1)
	assert.Equal(t, "42", q.Slots[0].Percentage)
	assert.Equal(t, "12.3", q.DiskSpace1)
}

func TestQueuePriority(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "queue", r.URL.Query().Get("mode"))
		assert.Equal(t, "priority", r.URL.Query().Get("name"))
		assert.Equal(t, PriorityForce, r.URL.Query().Get("value2"))
		w.Write([]byte(`{"status":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	require.NoError(t, c.QueuePriority(context.Background(), "n1", PriorityForce))
}
