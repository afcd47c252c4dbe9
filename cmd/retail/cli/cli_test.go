package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-retail/internal/analytics"
	"github.com/odyssey-erp/odyssey-retail/jobs"
)

type stubTaskClient struct {
	tasks []*asynq.Task
}

func (s *stubTaskClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "abc", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (s *stubTaskClient) Close() error { return nil }

type stubQueueInspector struct {
	info      *asynq.QueueInfo
	scheduled []*asynq.TaskInfo
	err       error
}

func (s stubQueueInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func (s stubQueueInspector) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return s.scheduled, s.err
}

func (s stubQueueInspector) Close() error { return nil }

func TestJobsTriggerWarmup(t *testing.T) {
	client := &stubTaskClient{}
	var out bytes.Buffer
	c := &JobsCLI{client: client, out: &out}

	require.NoError(t, c.Run(context.Background(), []string{"trigger", "warmup"}))
	require.Len(t, client.tasks, 1)
	require.Equal(t, jobs.TaskAnalyticsCacheWarmup, client.tasks[0].Type())
	require.Contains(t, out.String(), "enqueued analytics:cache_warmup id=abc")
}

func TestJobsTriggerUnknown(t *testing.T) {
	c := &JobsCLI{client: &stubTaskClient{}, out: &bytes.Buffer{}}
	require.ErrorContains(t, c.Run(context.Background(), []string{"trigger", "reindex"}), "unsupported job")
	require.Error(t, c.Run(context.Background(), []string{"trigger"}))
	require.Error(t, c.Run(context.Background(), nil))
}

func TestJobsStats(t *testing.T) {
	var out bytes.Buffer
	c := &JobsCLI{
		inspector: stubQueueInspector{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 4, Active: 1}},
		out:       &out,
	}
	require.NoError(t, c.Run(context.Background(), []string{"stats"}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, []string{"default", "4", "1", "0", "0"}, strings.Fields(lines[1]))
}

func TestJobsScheduled(t *testing.T) {
	var out bytes.Buffer
	next := time.Date(2024, 3, 1, 1, 15, 0, 0, time.UTC)
	c := &JobsCLI{
		inspector: stubQueueInspector{scheduled: []*asynq.TaskInfo{{ID: "t1", Type: jobs.TaskAnalyticsCacheWarmup, NextProcessAt: next}}},
		out:       &out,
	}
	require.NoError(t, c.Run(context.Background(), []string{"scheduled"}))
	require.Equal(t, "t1\tanalytics:cache_warmup\t2024-03-01T01:15:00Z\n", out.String())
}

func TestJobsStatsError(t *testing.T) {
	c := &JobsCLI{inspector: stubQueueInspector{err: errors.New("redis down")}, out: &bytes.Buffer{}}
	require.ErrorContains(t, c.Run(context.Background(), []string{"stats"}), "redis down")
}

func TestCacheBumpAndVersion(t *testing.T) {
	versions := analytics.NewLocalVersion()
	inv := analytics.NewInvalidator(versions, nil)
	var out bytes.Buffer
	c := NewCacheCLI(inv, versions, &out)

	before, err := versions.Version(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Run(context.Background(), []string{"bump", "price", "import"}))
	after, err := versions.Version(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, before, after)
	require.Equal(t, "analytics cache version bumped to "+after+"\n", out.String())

	out.Reset()
	require.NoError(t, c.Run(context.Background(), []string{"version"}))
	require.Equal(t, after+"\n", out.String())
}

func TestCacheUnknownCommand(t *testing.T) {
	versions := analytics.NewLocalVersion()
	c := NewCacheCLI(analytics.NewInvalidator(versions, nil), versions, &bytes.Buffer{})
	require.Error(t, c.Run(context.Background(), []string{"flush"}))
	require.Error(t, c.Run(context.Background(), nil))
	require.Error(t, (*CacheCLI)(nil).Run(context.Background(), []string{"bump"}))
}
