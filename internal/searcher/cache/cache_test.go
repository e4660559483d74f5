package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/comparison"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/judge"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/keyword"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/tfidf"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/redis"
)

type memoryBackend struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: make(map[string]string)}
}

func (m *memoryBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryBackend) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}

func (m *memoryBackend) FlushByPattern(_ context.Context, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	m.data = make(map[string]string)
	return n, nil
}

func testKey() Key {
	return Key{
		Dataset:     "api",
		Fingerprint: "abc",
		Queries:     []string{"wool shoes"},
		Algorithms:  []string{"tfidf"},
		KValues:     []int{1, 5},
		Limit:       10,
		Threshold:   0.3,
	}
}

func TestKeyIsStableAndSensitive(t *testing.T) {
	k := testKey()
	assert.Equal(t, k.String(), testKey().String())
	assert.Contains(t, k.String(), keyPrefix)

	other := testKey()
	other.Threshold = 0.12
	assert.NotEqual(t, k.String(), other.String())

	other = testKey()
	other.Queries = []string{"Wool shoes"}
	assert.NotEqual(t, k.String(), other.String())

	other = testKey()
	other.Settings = "retuned"
	assert.NotEqual(t, k.String(), other.String())
}

func TestKeySeparatesScorerAndJudgeSettings(t *testing.T) {
	build := func(kw keyword.Config, tf tfidf.Config, jc judge.Config) string {
		j, err := judge.New(jc)
		require.NoError(t, err)
		c := comparison.New(comparison.DefaultRegistry(kw, tf), j, comparison.DefaultConfig())
		k := testKey()
		k.Settings = c.SettingsDigest()
		return k.String()
	}
	base := build(keyword.DefaultConfig(), tfidf.DefaultConfig(), judge.DefaultConfig())
	assert.Equal(t, base, build(keyword.DefaultConfig(), tfidf.DefaultConfig(), judge.DefaultConfig()))

	kw := keyword.DefaultConfig()
	kw.PartialPolicy = keyword.PartialPrefix
	assert.NotEqual(t, base, build(kw, tfidf.DefaultConfig(), judge.DefaultConfig()))

	tf := tfidf.DefaultConfig()
	tf.MaxDF = 0.8
	assert.NotEqual(t, base, build(keyword.DefaultConfig(), tf, judge.DefaultConfig()))

	jc := judge.DefaultConfig()
	jc.BrandExact = 0.5
	assert.NotEqual(t, base, build(keyword.DefaultConfig(), tfidf.DefaultConfig(), jc))
}

func TestGetOrComputeCachesReports(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := New(newMemoryBackend(), pkgredis.IsNilError, time.Minute, WithMetrics(m))
	calls := 0
	compute := func(context.Context) (*comparison.Report, error) {
		calls++
		return &comparison.Report{RunID: "run-1", Products: 3}, nil
	}

	r, hit, err := c.GetOrCompute(context.Background(), testKey(), compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "run-1", r.RunID)

	r, hit, err = c.GetOrCompute(context.Background(), testKey(), compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, r.Products)
	assert.Equal(t, 1, calls)

	hits, _ := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportCacheHitsTotal))

	require.NoError(t, c.Invalidate(context.Background()))
	_, hit, err = c.GetOrCompute(context.Background(), testKey(), compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)
}

func TestGetOrComputeCoalescesConcurrentCallers(t *testing.T) {
	c := New(nil, nil, time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (*comparison.Report, error) {
		calls.Add(1)
		<-release
		return &comparison.Report{RunID: "shared"}, nil
	}

	var wg sync.WaitGroup
	results := make([]*comparison.Report, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, _, err := c.GetOrCompute(context.Background(), testKey(), compute)
			assert.NoError(t, err)
			results[i] = r
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r.RunID)
	}
}

func TestBackendErrorsFallBackToCompute(t *testing.T) {
	backend := newMemoryBackend()
	backend.getErr = errors.New("connection refused")
	c := New(backend, pkgredis.IsNilError, time.Minute)

	r, hit, err := c.GetOrCompute(context.Background(), testKey(), func(context.Context) (*comparison.Report, error) {
		return &comparison.Report{RunID: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fresh", r.RunID)
}

func TestComputeErrorIsReturned(t *testing.T) {
	c := New(newMemoryBackend(), pkgredis.IsNilError, time.Minute)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), testKey(), func(context.Context) (*comparison.Report, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestFingerprint(t *testing.T) {
	corpus := []product.Product{{ID: "1", Title: "Wool Shoes"}, {ID: "2", Title: "Sock"}}
	fp := Fingerprint(corpus)
	assert.Equal(t, fp, Fingerprint([]product.Product{{ID: "1", Title: "Wool Shoes"}, {ID: "2", Title: "Sock"}}))

	changed := []product.Product{{ID: "1", Title: "Wool Shoes"}, {ID: "2", Title: "Socks"}}
	assert.NotEqual(t, fp, Fingerprint(changed))

	social := []product.Product{{ID: "1", Title: "Wool Shoes", Engagement: &product.Engagement{Upvotes: 60}}, {ID: "2", Title: "Sock"}}
	assert.NotEqual(t, fp, Fingerprint(social))
}
