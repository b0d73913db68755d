package queue

import (
    "context"
    "encoding/json"
    "log/slog"
    "time"

    "github.com/pkg/errors"
    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends reminder events to RabbitMQ. It dials per batch, so a
// broker outage only costs the current scan.
type Publisher struct {
    url    string
    logger *slog.Logger
}

func NewPublisher(url string, logger *slog.Logger) *Publisher {
    return &Publisher{url: url, logger: logger}
}

// PublishTaskDue publishes every event to the task.due queue over a single
// connection. Messages are marked as persistent. It stops at the first
// failure and returns how many events were published.
func (p *Publisher) PublishTaskDue(ctx context.Context, events []TaskDueEvent) (int, error) {
    if len(events) == 0 {
        return 0, nil
    }
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return 0, errors.Wrap(err, "rabbitmq dial")
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return 0, errors.Wrap(err, "rabbitmq channel open")
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        TaskDueQueue, // name
        true,         // durable
        false,        // autoDelete
        false,        // exclusive
        false,        // noWait
        nil,          // args
    ); err != nil {
        return 0, errors.Wrap(err, "rabbitmq queue declare")
    }

    for i, ev := range events {
        body, err := json.Marshal(ev)
        if err != nil {
            return i, errors.Wrap(err, "marshal event")
        }
        pub := amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent, // store on disk
            Timestamp:    time.Now().UTC(),
            Body:         body,
        }
        if err := ch.PublishWithContext(ctx,
            "",           // default exchange
            TaskDueQueue, // routing key = queue name
            false,        // mandatory
            false,        // immediate
            pub,
        ); err != nil {
            return i, errors.Wrapf(err, "publish task %d", ev.TaskID)
        }
        p.logger.Debug("reminder published", slog.Uint64("task_id", ev.TaskID))
    }
    return len(events), nil
}
