package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"leadagent/app/model"
	"leadagent/app/util/mylog"

	"github.com/samber/do"
)

// Sink delivers one notice.
type Sink func(ctx context.Context, n Notice) error

type Worker struct {
	queueSvc *Service
	sink     Sink
}

func NewWorker(di *do.Injector) (*Worker, error) {
	return &Worker{
		queueSvc: do.MustInvoke[*Service](di),
		sink:     LogSink,
	}, nil
}

func NewWorkerWithSink(queue *Service, sink Sink) *Worker {
	return &Worker{
		queueSvc: queue,
		sink:     sink,
	}
}

// Run drains the queue until ctx is done or the queue is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-w.queueSvc.Channel():
			if !ok {
				return
			}

			start := time.Now()
			if err := w.sink(ctx, n); err != nil {
				slog.Error("Failed to deliver lead notice",
					"session_id", n.SessionID,
					"error", err,
				)
				continue
			}

			slog.Debug("Delivered lead notice",
				"session_id", n.SessionID,
				"duration", time.Since(start))
		}
	}
}

// LogSink emits the notice as a telegram-routed log record.
func LogSink(ctx context.Context, n Notice) error {
	f := n.Fields

	slog.InfoContext(ctx, "New qualified lead",
		"session_id", n.SessionID,
		"lead_id", n.LeadID,
		"class", n.Class,
		"probability", n.Probability,
		"name", f.Get(model.FieldName),
		"email", f.Get(model.FieldEmail),
		"phone", f.Get(model.FieldPhone),
		"sector", f.Get(model.FieldSector),
		"company", f.Get(model.FieldCompany),
		"products", strings.Join(n.Products, ", "),
		mylog.TelegramKey, true,
	)

	return nil
}
