// Package kafka implements the task queue producer. The runtime only
// publishes; consumers are separate worker processes.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// TaskEnvelope is one unit of deferred work: a function identifier plus
// keyword arguments, matching the worker-side task registry.
type TaskEnvelope struct {
	TaskID     string          `json:"task_id"`
	Task       string          `json:"task"`
	Kwargs     json.RawMessage `json:"kwargs"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

type TaskProducer struct {
	writer *kafka.Writer
}

func NewTaskProducer(brokers []string) *TaskProducer {
	return &TaskProducer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Enqueue publishes one task and returns its id. The message key is the
// task name so one task kind stays ordered per partition.
func (p *TaskProducer) Enqueue(ctx context.Context, topic, task string, kwargs any) (string, error) {
	rawKwargs, err := json.Marshal(kwargs)
	if err != nil {
		return "", err
	}

	env := TaskEnvelope{
		TaskID:     uuid.NewString(),
		Task:       task,
		Kwargs:     rawKwargs,
		EnqueuedAt: time.Now(),
	}
	value, err := json.Marshal(env)
	if err != nil {
		return "", err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(task),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		return "", err
	}
	return env.TaskID, nil
}

func (p *TaskProducer) Close() error {
	return p.writer.Close()
}
