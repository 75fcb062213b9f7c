package runner

import (
	"context"

	"github.com/oriys/photon/internal/handler"
)

// Restore runs the snapshot-restore phase: execute the restore hook, then
// signal readiness via restore/next. A failing hook is reported through
// restore/error; that report's status is logged but never fatal, so a bad
// report cannot crash the restore path on top of the hook failure.
func (r *Runner) Restore(ctx context.Context, hook func(context.Context) error) error {
	if hook != nil {
		if err := hook(ctx); err != nil {
			r.logger.Error("restore hook failed", "err", err)
			status, reportErr := r.client.ReportRestoreError(ctx,
				handler.ErrorBody("Runtime.RestoreError", err.Error()), "Runtime.RestoreError")
			if reportErr != nil {
				r.logger.Error("report restore error failed", "err", reportErr)
			} else {
				r.logger.Info("restore error reported", "status", status)
			}
			return err
		}
	}
	return r.client.RestoreNext(ctx)
}
