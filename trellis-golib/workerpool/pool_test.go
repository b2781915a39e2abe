package workerpool

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_RunJobs(t *testing.T) {
	pool := New(5)
	defer pool.Stop()

	var jobs []Job
	var completed int32
	for i := 0; i < 15; i++ {
		jobs = append(jobs, func() error {
			time.Sleep(50 * time.Millisecond)
			atomic.AddInt32(&completed, 1)
			return nil
		})
	}

	pool.Add(jobs)
	require.NoError(t, pool.Wait())
	require.EqualValues(t, len(jobs), completed, "expected all jobs to be completed")
}

func Test_StopWait(t *testing.T) {
	pool := New(5)

	var jobs []Job
	for i := 0; i < 15; i++ {
		jobs = append(jobs, func() error {
			time.Sleep(50 * time.Millisecond)
			return nil
		})
	}

	pool.Add(jobs)
	<-time.After(50 * time.Millisecond)
	pool.Stop()
	pool.Wait()
}

func Test_JobError(t *testing.T) {
	pool := New(2)
	defer pool.Stop()

	boom := fmt.Errorf("boom")

	var jobs []Job
	var completed int32
	for i := 0; i < 4; i++ {
		i := i
		jobs = append(jobs, func() error {
			atomic.AddInt32(&completed, 1)
			if i == 2 {
				return boom
			}
			return nil
		})
	}

	pool.Add(jobs)
	err := pool.Wait()
	require.Equal(t, boom, err)
	require.EqualValues(t, 4, completed, "an error must not cancel sibling jobs")
}
