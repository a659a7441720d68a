package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobManager_SubmitRunsInBackground(t *testing.T) {
	f := newFixture(t, taskModel(), nil)
	jobs := NewJobManager(f.pipeline, 2, nil)

	job := jobs.Submit(context.Background(), "I need to send a follow-up email to Jessica by Friday", RunOptions{})
	require.Len(t, job.ID, 8)
	jobs.Wait()

	snap := jobs.GetJob(job.ID).Snapshot()
	assert.True(t, job.Done())
	assert.Equal(t, JobStatusCompleted, snap.Status)
	require.NotNil(t, snap.Result)
	assert.True(t, snap.Result.Success)
	assert.Len(t, snap.Result.ActionLog, 2)
	assert.NotNil(t, snap.CompletedAt)
}

func TestJobManager_FailedRunFailsJob(t *testing.T) {
	f := newFixture(t, taskModel(), nil)
	jobs := NewJobManager(f.pipeline, 0, nil)
	assert.Equal(t, 4, jobs.Concurrency())

	job := jobs.Submit(context.Background(), "  ", RunOptions{})
	jobs.Wait()

	snap := job.Snapshot()
	assert.Equal(t, JobStatusFailed, snap.Status)
	assert.Equal(t, ErrEmptyInput.Error(), snap.Error)
}

func TestJobManager_PanicIsRecovered(t *testing.T) {
	jobs := NewJobManager(NewPipeline(Dependencies{}), 1, nil)

	job := jobs.Submit(context.Background(), "anything", RunOptions{})
	jobs.Wait()

	snap := job.Snapshot()
	assert.Equal(t, JobStatusFailed, snap.Status)
	assert.Contains(t, snap.Error, "internal panic")
}

func TestJobManager_CanceledCallerDoesNotStopJob(t *testing.T) {
	f := newFixture(t, taskModel(), nil)
	jobs := NewJobManager(f.pipeline, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	job := jobs.Submit(ctx, "I need to send a follow-up email to Jessica by Friday", RunOptions{})
	cancel()
	jobs.Wait()

	assert.Equal(t, JobStatusCompleted, job.Snapshot().Status)
}

func TestJobManager_ListJobsNewestFirst(t *testing.T) {
	f := newFixture(t, taskModel(), nil)
	jobs := NewJobManager(f.pipeline, 1, nil)

	first := jobs.Submit(context.Background(), "one", RunOptions{Category: "task"})
	second := jobs.Submit(context.Background(), "two", RunOptions{Category: "task"})
	jobs.Wait()

	list := jobs.ListJobs()
	require.Len(t, list, 2)
	if list[0].StartedAt.Equal(list[1].StartedAt) {
		t.Skip("jobs started in the same clock tick")
	}
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestJobManager_PrunesFinishedJobsOverCap(t *testing.T) {
	f := newFixture(t, taskModel(), nil)
	jobs := NewJobManager(f.pipeline, 1, nil)
	jobs.SetRetention(0, 2)

	var ids []string
	for range 3 {
		ids = append(ids, jobs.Submit(context.Background(), "  ", RunOptions{}).ID)
		jobs.Wait()
	}
	require.Len(t, jobs.ListJobs(), 3, "pruning happens on submit")

	latest := jobs.Submit(context.Background(), "  ", RunOptions{})
	jobs.Wait()

	assert.Nil(t, jobs.GetJob(ids[0]), "oldest finished job is dropped")
	assert.NotNil(t, jobs.GetJob(ids[1]))
	assert.NotNil(t, jobs.GetJob(ids[2]))
	assert.NotNil(t, jobs.GetJob(latest.ID))
}

func TestJobManager_PrunesExpiredJobs(t *testing.T) {
	f := newFixture(t, taskModel(), nil)
	jobs := NewJobManager(f.pipeline, 1, nil)

	old := jobs.Submit(context.Background(), "  ", RunOptions{})
	jobs.Wait()

	jobs.now = func() time.Time { return time.Now().Add(DefaultJobTTL + time.Minute) }
	fresh := jobs.Submit(context.Background(), "  ", RunOptions{})
	jobs.Wait()

	assert.Nil(t, jobs.GetJob(old.ID))
	assert.NotNil(t, jobs.GetJob(fresh.ID))
}
