// Package queue defines message payloads exchanged over the message broker.
package queue

// TaskDueQueue is the durable queue carrying due-date reminders.
const TaskDueQueue = "task.due"

// TaskDueEvent is published once per task that falls due on the next
// calendar day. It carries enough of the task and its owner for the
// consumer to produce a reminder without querying the primary database.
type TaskDueEvent struct {
    TaskID     uint64 `json:"task_id"`
    TaskName   string `json:"task_name"`
    Priority   string `json:"priority"`
    Status     string `json:"status"`
    DueDate    string `json:"due_date"`
    OwnerID    uint64 `json:"owner_id"`
    OwnerName  string `json:"owner_name"`
    OwnerEmail string `json:"owner_email"`
    ScannedAt  string `json:"scanned_at"`
}
