package e2esuite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunParallelTasks(t *testing.T) {
	require.NoError(t, RunParallelTasks())

	boom := errors.New("boom")
	err := RunParallelTasks(
		ParallelTask{Name: "ok", Run: func() error { return nil }},
		ParallelTask{Name: "query chain b", Run: func() error { return boom }},
	)
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "query chain b failed")
}

func TestRunParallelTasksWithResults(t *testing.T) {
	results, err := RunParallelTasksWithResults(
		ParallelTaskWithResult[int]{Name: "a", Run: func() (int, error) { return 1, nil }},
		ParallelTaskWithResult[int]{Name: "b", Run: func() (int, error) { return 2, nil }},
	)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"a": 1, "b": 2}, results)

	_, err = RunParallelTasksWithResults(
		ParallelTaskWithResult[int]{Name: "a", Run: func() (int, error) { return 0, errors.New("down") }},
	)
	require.Error(t, err)
}

func TestEnvImage(t *testing.T) {
	t.Setenv("TEST_IMAGE", "ghcr.io/cosmos/ibc-go-simd:v8.5.0")
	image := envImage("TEST_IMAGE")
	require.Equal(t, "ghcr.io/cosmos/ibc-go-simd", image.Repository)
	require.Equal(t, "v8.5.0", image.Version)

	t.Setenv("TEST_VALIDATORS", "3")
	require.Equal(t, 3, envInt("TEST_VALIDATORS", 1))
	require.Equal(t, 1, envInt("TEST_UNSET_VALIDATORS", 1))
}
