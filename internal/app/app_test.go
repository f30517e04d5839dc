package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/employee-directory/internal/config"
	"github.com/JakeFAU/employee-directory/internal/perf"
	"github.com/JakeFAU/employee-directory/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/employee-directory/internal/publisher/memory"
)

func memoryConfig() config.Config {
	return config.Config{
		DB:   config.DBConfig{Driver: config.DriverMemory},
		Perf: config.PerfConfig{Delay: time.Millisecond, MaxQueries: 10},
	}
}

func TestNewWiresMemoryStack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pub := memorypublisher.New()
	a, err := New(ctx, memoryConfig(), zap.NewNop(), Options{
		Registerer: prometheus.NewRegistry(),
		Publisher:  pub,
	})
	require.NoError(t, err)

	result, err := a.Search.SearchFixedName(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), result.ResultsCount)

	run, err := a.Reporter.Start(ctx, 2)
	require.NoError(t, err)
	var last perf.Event
	for evt := range run.Events {
		last = evt
	}
	require.IsType(t, &perf.FinalSummary{}, last)

	require.NoError(t, a.Close(ctx))
	require.NoError(t, a.Close(ctx))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	summary, ok := msgs[0].Payload.(sinks.RunSummary)
	require.True(t, ok)
	require.Equal(t, run.ID, summary.RunID)
	require.Equal(t, "completed", summary.Result)
	require.Equal(t, 2, summary.QueriesCompleted)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.DB.Driver = "sqlite"
	_, err := New(context.Background(), cfg, nil, Options{Registerer: prometheus.NewRegistry()})
	require.ErrorContains(t, err, `unknown db driver "sqlite"`)
}

func TestNewReportsMetricsRegistrationFailure(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first, err := New(context.Background(), memoryConfig(), nil, Options{Registerer: reg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close(context.Background()) })

	_, err = New(context.Background(), memoryConfig(), nil, Options{Registerer: reg})
	require.ErrorContains(t, err, "init run metrics")
}
