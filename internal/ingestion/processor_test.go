package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/farmrag/backend/internal/cache/redis"
	"github.com/farmrag/backend/internal/metrics"
	"github.com/farmrag/backend/internal/vector/milvus"
)

type mockEmbedder struct {
	calls    int
	failOn   map[int]bool
	lastText string
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	m.lastText = text
	if m.failOn[m.calls] {
		return nil, errors.New("embedding quota exceeded")
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type mockStore struct {
	upserts map[string][]milvus.Record
	deletes []string
}

func newMockStore() *mockStore {
	return &mockStore{upserts: make(map[string][]milvus.Record)}
}

func (m *mockStore) Upsert(ctx context.Context, namespace string, records []milvus.Record) error {
	m.upserts[namespace] = append(m.upserts[namespace], records...)
	return nil
}

func (m *mockStore) DeleteAll(ctx context.Context, namespace string) error {
	m.deletes = append(m.deletes, namespace)
	m.upserts[namespace] = nil
	return nil
}

func testProcessor(embedder Embedder, store VectorStore) *Processor {
	chunker := NewChunker(100, 20, 10, false)
	return NewProcessor(embedder, store, chunker, nil, nil, 0)
}

func docText(n int) []byte {
	return []byte(strings.Repeat("Scheme details for farmers. ", n))
}

func TestProcessUpload_ChunksEmbeddedAndUpserted(t *testing.T) {
	embedder := &mockEmbedder{}
	store := newMockStore()
	p := testProcessor(embedder, store)

	report, err := p.ProcessUpload(context.Background(), "schemes.txt", "text/plain", docText(20), "farmer-1")
	require.NoError(t, err)

	require.Equal(t, "farmer-1", report.Namespace)
	require.Greater(t, report.ChunksProcessed, 1)
	require.Zero(t, report.ChunksSkipped)
	require.Len(t, store.upserts["farmer-1"], report.ChunksProcessed)
	require.Equal(t, report.ChunksProcessed, embedder.calls)

	for _, rec := range store.upserts["farmer-1"] {
		require.Equal(t, "schemes.txt", rec.Source)
		require.Contains(t, rec.ID, "schemes_txt")
		require.NotEmpty(t, rec.Embedding)
	}
}

func TestProcessUpload_ReuploadClearsNamespaceFirst(t *testing.T) {
	store := newMockStore()
	p := testProcessor(&mockEmbedder{}, store)

	_, err := p.ProcessUpload(context.Background(), "old.txt", "text/plain", docText(10), "farmer-1")
	require.NoError(t, err)
	firstCount := len(store.upserts["farmer-1"])
	require.Greater(t, firstCount, 0)

	_, err = p.ProcessUpload(context.Background(), "new.txt", "text/plain", docText(10), "farmer-1")
	require.NoError(t, err)

	require.Equal(t, []string{"farmer-1", "farmer-1"}, store.deletes)
	for _, rec := range store.upserts["farmer-1"] {
		require.Equal(t, "new.txt", rec.Source)
	}
}

func TestProcessUpload_NamespacesStayIsolated(t *testing.T) {
	store := newMockStore()
	p := testProcessor(&mockEmbedder{}, store)

	_, err := p.ProcessUpload(context.Background(), "a.txt", "text/plain", docText(10), "farmer-a")
	require.NoError(t, err)
	_, err = p.ProcessUpload(context.Background(), "b.txt", "text/plain", docText(10), "farmer-b")
	require.NoError(t, err)

	require.NotEmpty(t, store.upserts["farmer-a"])
	require.NotEmpty(t, store.upserts["farmer-b"])
	for _, rec := range store.upserts["farmer-a"] {
		require.Equal(t, "a.txt", rec.Source)
	}
}

func TestProcessUpload_EmbeddingFailureSkipsChunk(t *testing.T) {
	embedder := &mockEmbedder{failOn: map[int]bool{2: true}}
	store := newMockStore()
	p := testProcessor(embedder, store)

	report, err := p.ProcessUpload(context.Background(), "schemes.txt", "text/plain", docText(20), "farmer-1")
	require.NoError(t, err)

	require.Equal(t, 1, report.ChunksSkipped)
	require.Equal(t, embedder.calls-1, report.ChunksProcessed)
	require.Len(t, store.upserts["farmer-1"], report.ChunksProcessed)
}

func TestProcessUpload_EmptyDocumentRejected(t *testing.T) {
	p := testProcessor(&mockEmbedder{}, newMockStore())

	_, err := p.ProcessUpload(context.Background(), "empty.txt", "text/plain", []byte("   \n  "), "ns")
	require.ErrorIs(t, err, ErrNoContent)
}

func TestProcessUpload_TooShortDocumentRejected(t *testing.T) {
	p := testProcessor(&mockEmbedder{}, newMockStore())

	_, err := p.ProcessUpload(context.Background(), "tiny.txt", "text/plain", []byte("hi"), "ns")
	require.ErrorIs(t, err, ErrNoContent)
}

func TestProcessUpload_HTMLStrippedToText(t *testing.T) {
	embedder := &mockEmbedder{}
	store := newMockStore()
	p := testProcessor(embedder, store)

	html := `<html><head><style>body {color: red}</style></head><body>
		<nav>Menu Home About</nav>
		<p>` + strings.Repeat("Crop insurance protects farmers from losses. ", 5) + `</p>
		<script>alert("x")</script>
		<footer>Copyright</footer>
	</body></html>`

	report, err := p.ProcessUpload(context.Background(), "page.html", "text/html", []byte(html), "ns")
	require.NoError(t, err)
	require.Greater(t, report.ChunksProcessed, 0)

	for _, rec := range store.upserts["ns"] {
		require.NotContains(t, rec.Text, "alert")
		require.NotContains(t, rec.Text, "color: red")
		require.NotContains(t, rec.Text, "Menu Home")
	}
}

func TestProcessUpload_WhitespaceNormalized(t *testing.T) {
	store := newMockStore()
	p := testProcessor(&mockEmbedder{}, store)

	text := strings.Repeat("word\n\n\t  another   ", 20)
	_, err := p.ProcessUpload(context.Background(), "messy.txt", "text/plain", []byte(text), "ns")
	require.NoError(t, err)

	for _, rec := range store.upserts["ns"] {
		require.NotContains(t, rec.Text, "\n")
		require.NotContains(t, rec.Text, "  ")
	}
}

func TestProcessUpload_CountersTrackProcessedAndSkipped(t *testing.T) {
	processedBefore := testutil.ToFloat64(metrics.ChunksProcessed)
	skippedBefore := testutil.ToFloat64(metrics.ChunksSkipped)

	embedder := &mockEmbedder{failOn: map[int]bool{1: true}}
	p := testProcessor(embedder, newMockStore())

	report, err := p.ProcessUpload(context.Background(), "schemes.txt", "text/plain", docText(20), "farmer-1")
	require.NoError(t, err)

	processedDelta := testutil.ToFloat64(metrics.ChunksProcessed) - processedBefore
	skippedDelta := testutil.ToFloat64(metrics.ChunksSkipped) - skippedBefore
	require.EqualValues(t, report.ChunksProcessed, processedDelta)
	require.EqualValues(t, report.ChunksSkipped, skippedDelta)
	require.EqualValues(t, 1, skippedDelta)
}

func TestProcessUpload_EmbeddingCacheMissesCounted(t *testing.T) {
	missesBefore := testutil.ToFloat64(metrics.CacheMisses.WithLabelValues("embedding"))

	chunker := NewChunker(100, 20, 10, false)
	p := NewProcessor(&mockEmbedder{}, newMockStore(), chunker, &redis.Client{}, nil, 0)

	report, err := p.ProcessUpload(context.Background(), "schemes.txt", "text/plain", docText(20), "farmer-1")
	require.NoError(t, err)

	missesDelta := testutil.ToFloat64(metrics.CacheMisses.WithLabelValues("embedding")) - missesBefore
	require.EqualValues(t, report.ChunksProcessed, missesDelta)
}

func TestProcessor_ReadyRequiresBothClients(t *testing.T) {
	require.True(t, testProcessor(&mockEmbedder{}, newMockStore()).Ready())
	require.False(t, testProcessor(nil, newMockStore()).Ready())
	require.False(t, testProcessor(&mockEmbedder{}, nil).Ready())
}
