package e2esuite

import (
	"fmt"
)

// ParallelTask is a named task that can be executed concurrently.
type ParallelTask struct {
	Name string
	Run  func() error
}

// RunParallelTasks executes multiple tasks concurrently and waits for all of
// them. The first failure is returned with the task name prepended.
func RunParallelTasks(tasks ...ParallelTask) error {
	if len(tasks) == 0 {
		return nil
	}

	type result struct {
		name string
		err  error
	}

	results := make(chan result, len(tasks))
	for _, task := range tasks {
		go func() {
			results <- result{name: task.Name, err: task.Run()}
		}()
	}

	var firstError error
	for range tasks {
		res := <-results
		if res.err != nil && firstError == nil {
			firstError = fmt.Errorf("%s failed: %w", res.name, res.err)
		}
	}
	return firstError
}

// ParallelTaskWithResult is a named task that returns a value.
type ParallelTaskWithResult[T any] struct {
	Name string
	Run  func() (T, error)
}

// RunParallelTasksWithResults executes multiple tasks concurrently and returns
// their values keyed by task name, or the first failure.
func RunParallelTasksWithResults[T any](tasks ...ParallelTaskWithResult[T]) (map[string]T, error) {
	if len(tasks) == 0 {
		return make(map[string]T), nil
	}

	type result struct {
		name  string
		value T
		err   error
	}

	results := make(chan result, len(tasks))
	for _, task := range tasks {
		go func() {
			value, err := task.Run()
			results <- result{name: task.Name, value: value, err: err}
		}()
	}

	resultMap := make(map[string]T)
	var firstError error
	for range tasks {
		res := <-results
		if res.err != nil && firstError == nil {
			firstError = fmt.Errorf("%s failed: %w", res.name, res.err)
		} else if res.err == nil {
			resultMap[res.name] = res.value
		}
	}

	if firstError != nil {
		return nil, firstError
	}
	return resultMap, nil
}
