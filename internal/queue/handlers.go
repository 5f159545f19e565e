package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// RegisterDefaults installs the logging handlers for the known job types.
// Delivery integrations replace them with Handle.
func RegisterDefaults(q *Queue) {
	q.Handle(TypeSendEmail, logHandler(q.lg, "Sending email", "to"))
	q.Handle(TypeProcessImage, logHandler(q.lg, "Processing image", "imagePath"))
	q.Handle(TypeUpdateInventory, logHandler(q.lg, "Updating inventory", "productId"))
	q.Handle(TypeGenerateReport, logHandler(q.lg, "Generating report", "reportType"))
}

func logHandler(lg *zap.Logger, msg, key string) Handler {
	return func(_ context.Context, job Job) error {
		v, ok := job.Data[key]
		if !ok {
			return fmt.Errorf("job %s: missing %q", job.ID, key)
		}
		lg.Info(msg, zap.String("job_id", job.ID), zap.Any(key, v))
		return nil
	}
}
