package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "time"

    "github.com/pkg/errors"
    amqp "github.com/rabbitmq/amqp091-go"
)

// ReminderLogFile is the file, under the configured directory, that
// receives one line per reminder.
const ReminderLogFile = "reminders.log"

// StartReminderConsumer connects to RabbitMQ, declares the task.due queue
// (durable) and appends each reminder to <logDir>/reminders.log. It runs a
// reconnect loop with exponential backoff and returns only when ctx is
// cancelled. Messages that cannot be handled are rejected without requeue
// so a poison message cannot spin the loop.
func StartReminderConsumer(ctx context.Context, url, logDir string, logger *slog.Logger) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            logger.Warn("reminder-consumer: failed to dial broker",
                slog.String("error", err.Error()), slog.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = consumeLoop(ctx, conn, logDir, logger)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        logger.Warn("reminder-consumer: consume loop ended, reconnecting", slog.String("error", err.Error()))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logDir string, logger *slog.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return errors.Wrap(err, "channel open")
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        logger.Warn("reminder-consumer: set QoS failed", slog.String("error", err.Error()))
    }
    if _, err := ch.QueueDeclare(TaskDueQueue, true, false, false, false, nil); err != nil {
        return errors.Wrap(err, "queue declare")
    }
    msgs, err := ch.Consume(TaskDueQueue, "", false, false, false, false, nil)
    if err != nil {
        return errors.Wrap(err, "queue consume")
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := handleMessage(d.Body, logDir); err != nil {
                logger.Error("reminder-consumer: handle message failed", slog.String("error", err.Error()))
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func handleMessage(body []byte, logDir string) error {
    var ev TaskDueEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return errors.Wrap(err, "unmarshal")
    }
    if ev.TaskID == 0 || ev.OwnerEmail == "" {
        return errors.New("reminder without task id or recipient")
    }
    if err := os.MkdirAll(logDir, 0o755); err != nil {
        return errors.Wrap(err, "mkdir log dir")
    }
    f, err := os.OpenFile(filepath.Join(logDir, ReminderLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return errors.Wrap(err, "open reminder log")
    }
    defer f.Close()

    line := fmt.Sprintf("[%s] Task due tomorrow | to=%q | name=%q | task_id=%d | task=%q | priority=%s | status=%s | due=%s\n",
        ev.ScannedAt, ev.OwnerEmail, ev.OwnerName, ev.TaskID, ev.TaskName, ev.Priority, ev.Status, ev.DueDate)
    if _, err := f.WriteString(line); err != nil {
        return errors.Wrap(err, "write reminder log")
    }
    return nil
}

// sleep waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
