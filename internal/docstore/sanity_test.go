package docstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSanity(t *testing.T, h http.HandlerFunc) *SanityStore {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewSanityStore(SanityConfig{
		Dataset:    "production",
		Token:      "secret",
		APIVersion: "2024-03-01",
		BaseURL:    srv.URL,
		Timeout:    time.Second,
	})
}

func TestSanityStore_CreateIfAbsentSendsFlatDocument(t *testing.T) {
	var body map[string][]map[string]map[string]any
	s := newTestSanity(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2024-03-01/data/mutate/production", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("returnIds"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(b, &body))
		_, _ = io.WriteString(w, `{"transactionId":"tx","results":[{"id":"queue.a","operation":"create"}]}`)
	})

	created, err := s.CreateIfAbsent(context.Background(), doc("queue.a", KindQueue, "https://x/a"))
	require.NoError(t, err)
	assert.True(t, created)

	m := body["mutations"][0]["createIfNotExists"]
	assert.Equal(t, "queue.a", m["_id"])
	assert.Equal(t, KindQueue, m["_type"])
	assert.Equal(t, "https://x/a", m["link"])
	assert.Equal(t, "queue.a", m["title"])
}

func TestSanityStore_CreateIfAbsentExisting(t *testing.T) {
	s := newTestSanity(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"transactionId":"tx","results":[]}`)
	})
	created, err := s.CreateIfAbsent(context.Background(), doc("queue.a", KindQueue, "https://x/a"))
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSanityStore_CreateConflictAndServerError(t *testing.T) {
	status := http.StatusConflict
	s := newTestSanity(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"error":"nope"}`)
	})
	err := s.Create(context.Background(), doc("drafts.1", KindPost, "https://x/a"))
	assert.ErrorIs(t, err, ErrConflict)

	status = http.StatusInternalServerError
	err = s.Create(context.Background(), doc("drafts.1", KindPost, "https://x/a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=500")
}

func TestSanityStore_CountPassesParams(t *testing.T) {
	s := newTestSanity(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.True(t, strings.HasPrefix(q.Get("query"), "count(*[_type in $kinds && link == $link"))
		assert.Equal(t, `["queue","post"]`, q.Get("$kinds"))
		assert.Equal(t, `"https://x/a"`, q.Get("$link"))
		_, _ = io.WriteString(w, `{"result":1}`)
	})
	n, err := s.Count(context.Background(), Filter{Kinds: []string{KindQueue, KindPost}, Link: "https://x/a"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSanityStore_QueryDecodesDocuments(t *testing.T) {
	s := newTestSanity(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"result":[{"_id":"queue.a","_type":"queue","link":"https://x/a","createdAt":"2024-03-01T10:00:00Z","title":"A"}]}`)
	})
	docs, err := s.Query(context.Background(), Filter{Kinds: []string{KindQueue}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "queue.a", docs[0].ID)
	assert.Equal(t, "https://x/a", docs[0].Link)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), docs[0].CreatedAt)

	var payload struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(docs[0].Data, &payload))
	assert.Equal(t, "A", payload.Title)
}

func TestSanityStore_GetMissing(t *testing.T) {
	s := newTestSanity(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"result":null}`)
	})
	_, err := s.Get(context.Background(), "queue.zzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSanityStore_QueryLimitOrdersByCreation(t *testing.T) {
	var groq string
	s := newTestSanity(t, func(w http.ResponseWriter, r *http.Request) {
		groq = r.URL.Query().Get("query")
		_, _ = io.WriteString(w, `{"result":[
			{"_id":"drafts.b","_type":"post","createdAt":"2024-03-01T10:00:00.000000000Z"},
			"garbage",
			{"_id":"drafts.a","_type":"post","createdAt":"2024-03-02T10:00:00.000000000Z"}]}`)
	})
	docs, err := s.Query(context.Background(), Filter{Kinds: []string{KindPost}, Limit: 5, Newest: true})
	require.NoError(t, err)
	assert.Equal(t, `*[_type in $kinds] | order(createdAt desc, _id desc)[0...5]`, groq)
	require.Len(t, docs, 2)
	assert.Equal(t, "drafts.a", docs[0].ID)
	assert.Equal(t, "drafts.b", docs[1].ID)
}

func TestFlattenUsesFixedWidthTimestamps(t *testing.T) {
	d := doc("queue.a", KindQueue, "https://x/a")
	d.CreatedAt = time.Date(2024, 3, 1, 10, 0, 0, 500, time.UTC)
	m, err := flatten(d)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T10:00:00.000000500Z", m["createdAt"])
}
