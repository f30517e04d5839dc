package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/employee-directory/internal/app"
	"github.com/JakeFAU/employee-directory/internal/config"
	"github.com/JakeFAU/employee-directory/internal/directory"
	"github.com/JakeFAU/employee-directory/internal/perf"
	"github.com/JakeFAU/employee-directory/internal/progress/sinks"
	"github.com/JakeFAU/employee-directory/internal/publisher/memory"
	memorystore "github.com/JakeFAU/employee-directory/internal/storage/memory"
)

// trackingStore wraps the seeded memory store and records searches and Close.
type trackingStore struct {
	directory.RecordStore
	panicOnSearch bool

	closed atomic.Bool
	mu     sync.Mutex
	ctxs   []context.Context
}

func newTrackingStore() *trackingStore {
	return &trackingStore{RecordStore: memorystore.NewEmployeeStore(memorystore.DefaultSeed())}
}

func (s *trackingStore) CountExactMatch(ctx context.Context, first, last string) (int64, time.Duration, error) {
	s.mu.Lock()
	s.ctxs = append(s.ctxs, ctx)
	s.mu.Unlock()
	if s.panicOnSearch {
		panic("boom")
	}
	return s.RecordStore.CountExactMatch(ctx, first, last)
}

func (s *trackingStore) Close() {
	s.closed.Store(true)
	s.RecordStore.Close()
}

func (s *trackingStore) searchContexts() []context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]context.Context(nil), s.ctxs...)
}

func trackingFactories(store *trackingStore, pub *memory.Publisher) factories {
	f := testFactories(memoryConfig())
	f.newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
		return app.New(ctx, cfg, logger, app.Options{
			Registerer: prometheus.NewRegistry(),
			Store:      store,
			Publisher:  pub,
		})
	}
	return f
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("stdout closed")
}

func testFactories(cfg config.Config) factories {
	return factories{
		loadConfig: func(string) (config.Config, error) { return cfg, nil },
		newLogger:  func(bool) (*zap.Logger, error) { return zap.NewNop(), nil },
		newApp: func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
			return app.New(ctx, cfg, logger, app.Options{Registerer: prometheus.NewRegistry()})
		},
	}
}

func memoryConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{RequestTimeout: time.Second},
		DB:     config.DBConfig{Driver: config.DriverMemory},
		Perf:   config.PerfConfig{DefaultQueries: 2, MaxQueries: 20, Delay: time.Millisecond},
	}
}

func execute(t *testing.T, f factories, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(f)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionSkipsServiceInit(t *testing.T) {
	t.Parallel()

	f := testFactories(memoryConfig())
	f.loadConfig = func(string) (config.Config, error) {
		return config.Config{}, errors.New("should not load")
	}
	out, err := execute(t, f, "version")
	require.NoError(t, err)
	require.Equal(t, "employeedir "+Version+"\n", out)
}

func TestBenchPrintsJSONLines(t *testing.T) {
	t.Parallel()

	out, err := execute(t, testFactories(memoryConfig()), "bench", "--queries", "3")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)

	var snap perf.Snapshot
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &snap))
	require.Equal(t, 1, snap.Progress)
	require.Equal(t, int64(2), snap.ResultsCount)

	var final perf.FinalSummary
	require.NoError(t, json.Unmarshal([]byte(lines[3]), &final))
	require.Equal(t, "completed", final.Status)
	require.Equal(t, 3, final.QueriesExecuted)
}

func TestBenchUsesConfiguredDefault(t *testing.T) {
	t.Parallel()

	out, err := execute(t, testFactories(memoryConfig()), "bench")
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)
}

func TestBenchRejectsInvalidQueries(t *testing.T) {
	t.Parallel()

	_, err := execute(t, testFactories(memoryConfig()), "bench", "--queries", "0")
	require.ErrorIs(t, err, perf.ErrInvalidQueryCount)

	_, err = execute(t, testFactories(memoryConfig()), "bench", "-n", "21")
	require.ErrorIs(t, err, perf.ErrInvalidQueryCount)
}

func TestConfigErrorsSurface(t *testing.T) {
	t.Parallel()

	f := testFactories(memoryConfig())
	f.loadConfig = func(string) (config.Config, error) {
		return config.Config{}, errors.New("db.dsn is required")
	}
	_, err := execute(t, f, "bench")
	require.ErrorContains(t, err, "load config: db.dsn is required")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, handler, zap.NewNop()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestBenchClosesServicesWhenRunAborts(t *testing.T) {
	t.Parallel()

	store := newTrackingStore()
	store.panicOnSearch = true
	pub := memory.New()

	out, err := execute(t, trackingFactories(store, pub), "bench", "-n", "3")
	require.ErrorContains(t, err, "aborted: performance run failed: boom")
	require.Contains(t, out, `"status":"error"`)
	require.True(t, store.closed.Load(), "store should be closed after a failed bench")

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	summary, ok := msgs[0].Payload.(sinks.RunSummary)
	require.True(t, ok)
	require.Equal(t, "error", summary.Result)
	require.Zero(t, summary.QueriesCompleted)
}

func TestBenchStopsRunWhenOutputFails(t *testing.T) {
	t.Parallel()

	store := newTrackingStore()
	cmd := newRootCmd(trackingFactories(store, memory.New()))
	cmd.SetOut(failingWriter{})
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"bench", "-n", "20"})

	err := cmd.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "write event: stdout closed")
	require.True(t, store.closed.Load())

	ctxs := store.searchContexts()
	require.NotEmpty(t, ctxs)
	for _, ctx := range ctxs {
		require.Error(t, ctx.Err(), "search context should be cancelled once bench returns")
	}
}
