package flow

import (
	"context"
	"flowclient/internal/apperrors"
	"flowclient/pkg/backoff"
	"fmt"
	"slices"
	"strings"
	"time"
)

// MonitorStatus polls the job until it completes or fails and returns the
// outcome. The first poll is immediate, then one per poll interval. There is
// no built-in timeout; cancel ctx to stop waiting.
//
// Progress goes to the configured writer as a carriage-return line. When the
// set of running components changes, a line break starts a fresh line.
func (c *Client) MonitorStatus(ctx context.Context, jobID, role, partyID string) (StatusCode, error) {
	if jobID == "" {
		return StatusFail, apperrors.Validation("jobId", "job id is required")
	}

	logger := c.logger.With("jobId", jobID, "role", role, "partyId", partyID)
	start := c.now()
	prevRunning := ""
	fmt.Fprintf(c.progress, "Job id is %s\n", jobID)

	for {
		q, err := c.QueryJob(ctx, jobID, role, partyID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return StatusFail, fmt.Errorf("monitor job %s: %w", jobID, ctxErr)
			}
			return StatusFail, err
		}
		status := q.Job.Status
		if c.metrics != nil {
			c.metrics.RecordPoll(ctx, string(status))
		}
		elapsed := c.now().Sub(start)

		switch status {
		case StatusComplete:
			fmt.Fprintf(c.progress, "\nJob is success!!! Job id is %s, time elapse: %s\n", jobID, formatElapsed(elapsed))
			c.finish(ctx, StatusSuccess, elapsed)
			logger.Info("Job completed", "elapsed", elapsed)
			return StatusSuccess, nil

		case StatusFailed:
			fmt.Fprintf(c.progress, "\nJob is failed, please check out job %s by board or flow cli\n", jobID)
			c.finish(ctx, StatusFail, elapsed)
			logger.Warn("Job failed", "elapsed", elapsed)
			return StatusFail, nil

		case StatusWaiting:
			fmt.Fprintf(c.progress, "\rJob is still waiting, time elapse: %s", formatElapsed(elapsed))

		case StatusRunning:
			names, ok := c.runningComponents(ctx, jobID, role, partyID)
			if ok {
				key := strings.Join(names, ",")
				if key != prevRunning {
					fmt.Fprint(c.progress, "\n")
					prevRunning = key
				}
				fmt.Fprintf(c.progress, "\rRunning component %s, time elapse: %s", formatComponents(names), formatElapsed(elapsed))
			}

		default:
			logger.Debug("Ignoring unknown job status", "status", status)
		}

		if err := backoff.Sleep(ctx, c.pollInterval); err != nil {
			return StatusFail, fmt.Errorf("monitor job %s: %w", jobID, err)
		}
	}
}

// runningComponents returns the sorted names of running components. ok is
// false when the task query failed or found nothing, in which case the tick
// reports no progress.
func (c *Client) runningComponents(ctx context.Context, jobID, role, partyID string) ([]string, bool) {
	q, err := c.QueryTask(ctx, jobID, role, partyID, StatusRunning)
	if err != nil {
		c.logger.Debug("Task query failed", "jobId", jobID, "error", err)
		return nil, false
	}
	if q.RetCode != 0 || len(q.Tasks) == 0 {
		return nil, false
	}

	names := make([]string, 0, len(q.Tasks))
	for _, t := range q.Tasks {
		names = append(names, t.Component)
	}
	slices.Sort(names)
	return slices.Compact(names), true
}

func (c *Client) finish(ctx context.Context, code StatusCode, elapsed time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordOutcome(ctx, code.String(), elapsed.Seconds())
	}
}

func formatComponents(names []string) string {
	if len(names) == 1 {
		return names[0]
	}
	return "[" + strings.Join(names, ", ") + "]"
}

// formatElapsed renders d as H:MM:SS, truncated to whole seconds.
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}
