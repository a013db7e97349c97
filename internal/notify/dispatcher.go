package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tutorhq/tutorbook/internal/model"
)

type Task struct {
	Recipient string
	Kind      Kind
	Appt      model.Appointment
}

type TaskResult struct {
	Task Task
	Err  error
}

// Dispatcher fans notification tasks out to the Notifier after a state
// transition has committed. Delivery failures never roll back the transition;
// they are reported on the returned channel so the caller can alert an
// operator.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger
}

func NewDispatcher(notifier Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{notifier: notifier, logger: logger}
}

// Dispatch sends every task concurrently and returns a channel carrying one
// result per task. The channel is closed once all sends have been attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, tasks ...Task) <-chan TaskResult {
	results := make(chan TaskResult, len(tasks))

	var wg sync.WaitGroup
	for _, task := range tasks {
		if task.Recipient == "" {
			continue
		}
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			err := d.notifier.Notify(ctx, t.Recipient, t.Kind, t.Appt)
			if err != nil {
				d.logger.Error("notification failed",
					"kind", string(t.Kind),
					"recipient", t.Recipient,
					"appointment_id", t.Appt.ID,
					"err", err,
				)
			}
			results <- TaskResult{Task: t, Err: err}
		}(task)
	}

	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

// CollectFailures drains a dispatch channel and returns the failed results.
func CollectFailures(results <-chan TaskResult) []TaskResult {
	var failed []TaskResult
	for res := range results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}
