package deliverq

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/justinchung712/swe-repo-notify/internal/pkg/mail"
)

// MailSender delivers a single email message.
type MailSender interface {
	Send(msg mail.Message) error
}

// SMSSender delivers a single text message.
type SMSSender interface {
	Send(to, body string) error
}

// Worker drains the delivery queue and hands tasks to the providers.
type Worker struct {
	q      *Queue
	mailer MailSender
	smser  SMSSender
	logger *zap.Logger
}

func NewWorker(q *Queue, mailer MailSender, smser SMSSender, logger *zap.Logger) *Worker {
	return &Worker{q: q, mailer: mailer, smser: smser, logger: logger}
}

// Run processes tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := w.q.pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("delivery queue pop failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}
		w.process(ctx, *task)
	}
}

func (w *Worker) process(ctx context.Context, task Task) {
	var err error
	switch task.Channel {
	case ChannelEmail:
		err = w.mailer.Send(mail.Message{
			To:      []string{task.To},
			Subject: task.Subject,
			HTML:    task.HTML,
			Text:    task.Text,
		})
	case ChannelSMS:
		err = w.smser.Send(task.To, task.Text)
	default:
		w.logger.Error("delivery task with unknown channel dropped",
			zap.String("task_id", task.ID),
			zap.String("channel", string(task.Channel)),
		)
		return
	}

	if err == nil {
		w.logger.Info("delivery sent",
			zap.String("task_id", task.ID),
			zap.String("channel", string(task.Channel)),
		)
		return
	}

	task.Attempts++
	if task.Attempts >= maxAttempts {
		w.logger.Error("delivery failed permanently",
			zap.String("task_id", task.ID),
			zap.String("channel", string(task.Channel)),
			zap.Int("attempts", task.Attempts),
			zap.Error(err),
		)
		return
	}

	w.logger.Warn("delivery failed, requeueing",
		zap.String("task_id", task.ID),
		zap.Int("attempts", task.Attempts),
		zap.Error(err),
	)
	time.Sleep(retryDelay)
	if rerr := w.q.requeue(ctx, task); rerr != nil {
		w.logger.Error("requeue failed, task lost", zap.String("task_id", task.ID), zap.Error(rerr))
	}
}
