package metrics

import "time"

// TaskCompleted records a successful maintenance task run
func TaskCompleted(task string, duration time.Duration) {
	WorkerRunsTotal.WithLabelValues(task, "completed").Inc()
	WorkerRunDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// TaskFailed records a maintenance task failure
func TaskFailed(task string) {
	WorkerRunsTotal.WithLabelValues(task, "failed").Inc()
}
