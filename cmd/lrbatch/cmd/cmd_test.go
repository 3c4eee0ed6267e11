package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ab180/lrbatch/coordinator"
	"github.com/ab180/lrbatch/job"
	"github.com/ab180/lrbatch/repository"
	"github.com/ab180/lrbatch/test"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// uniqueDate makes parameters of an instance which no other run of the process has used.
func uniqueDate() string {
	return "date=" + strconv.FormatInt(time.Now().UnixNano(), 10)
}

func TestRun(t *testing.T) {
	out, err := execute(t, "run", "metrics", uniqueDate())
	require.NoError(t, err)
	require.Contains(t, out, "item = 1\n")
	require.Contains(t, out, "item = 10\n")

	_, err = execute(t, "run", "failing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "FAILED")

	_, err = execute(t, "run", "nonexistent")
	require.Error(t, err)
	require.Contains(t, err.Error(), "available jobs: failing, metrics")
}

func TestJobs(t *testing.T) {
	out, err := execute(t, "jobs")
	require.NoError(t, err)
	require.Equal(t, "failing\nmetrics\n", out)
}

func TestLast(t *testing.T) {
	date := uniqueDate()
	_, err := execute(t, "run", "metrics", date)
	require.NoError(t, err)

	out, err := execute(t, "last", "metrics", date)
	require.NoError(t, err)

	var summary struct {
		Status     job.BatchStatus `json:"status"`
		Parameters job.Parameters  `json:"parameters"`
		Steps      []struct {
			StepName    string
			WriteCount  int
			CommitCount int
		} `json:"steps"`
	}
	require.NoError(t, jsoniter.UnmarshalFromString(out, &summary))
	require.Equal(t, job.Completed, summary.Status)
	require.Equal(t, strings.TrimPrefix(date, "date="), summary.Parameters["date"])
	require.Len(t, summary.Steps, 2)
	require.Equal(t, "step1", summary.Steps[0].StepName)
	require.Equal(t, "step2", summary.Steps[1].StepName)
	require.Equal(t, 10, summary.Steps[1].WriteCount)
	require.Equal(t, 3, summary.Steps[1].CommitCount)

	_, err = execute(t, "last", "metrics", uniqueDate())
	require.Error(t, err)
	require.Contains(t, err.Error(), "has never been executed")
}

func TestMetricsHandler(t *testing.T) {
	_, err := execute(t, "run", "metrics", uniqueDate())
	require.NoError(t, err)

	srv := httptest.NewServer(metricsHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "spring_batch_job_seconds")
	require.Contains(t, string(body), "spring_batch_chunk_write_seconds")
}

func TestRunner_Schedule(t *testing.T) {
	repo := repository.New(coordinator.NewLocalMemory())
	launcher := job.NewLauncher(repo)
	var out bytes.Buffer

	// a restarted scheduler must not reuse the run IDs of the former one
	for i := 0; i < 2; i++ {
		r := &runner{name: "metrics", launcher: launcher, repo: repo, factory: test.MetricsJob, out: &out}
		ctx, cancel := context.WithTimeout(context.Background(), 1800*time.Millisecond)
		require.NoError(t, r.schedule(ctx, "@every 1s", nil))
		cancel()
	}
	require.GreaterOrEqual(t, strings.Count(out.String(), "item = 10\n"), 2)

	for _, runID := range []string{"1", "2"} {
		e, err := repo.LastExecution(context.Background(), "job", job.Parameters{"run.id": runID})
		require.NoError(t, err)
		require.NotNil(t, e, "run %s should have been executed", runID)
		require.Equal(t, job.Completed, e.Status)
	}

	r := &runner{name: "metrics", launcher: launcher, repo: repo, factory: test.MetricsJob, out: io.Discard}
	require.Error(t, r.schedule(context.Background(), "every second", nil))
}

func TestParseParameters(t *testing.T) {
	params, err := parseParameters([]string{"date=2021-01-01", "query=a=b", "empty="})
	require.NoError(t, err)
	require.Equal(t, job.Parameters{"date": "2021-01-01", "query": "a=b", "empty": ""}, params)

	_, err = parseParameters([]string{"novalue"})
	require.Error(t, err)

	_, err = parseParameters([]string{"=value"})
	require.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	defer viper.Set("store", "memory")

	viper.Set("store", "memory")
	crd, err := openStore()
	require.NoError(t, err)
	require.NoError(t, crd.Close())

	viper.Set("store", "redis")
	_, err = openStore()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown store")
}
