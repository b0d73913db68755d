package model

import (
    "strings"
    "time"
)

// Task priorities.
const (
    PriorityLow    = "low"
    PriorityMedium = "medium"
    PriorityHigh   = "high"
)

// Task statuses written by the toggle operation.  Status is otherwise
// free-form; see Completed.
const (
    StatusPending   = "pending"
    StatusDone      = "done"
    StatusCompleted = "completed"
)

// Task represents a row in the `tasks` table.  OwnerID is set at
// creation and never changes afterwards.  IsPublic governs whether
// callers other than the owner may read the task.
type Task struct {
    ID             uint64     `json:"id"`                       // tasks.id
    OwnerID        uint64     `json:"userId"`                   // tasks.user_id
    Name           string     `json:"name"`                     // tasks.name
    Description    string     `json:"description"`              // tasks.description
    Priority       string     `json:"priority"`                 // tasks.priority
    Status         string     `json:"status"`                   // tasks.status
    DueDate        *time.Time `json:"dueDate"`                  // tasks.due_date (nullable)
    Category       *string    `json:"category"`                 // tasks.category (nullable)
    IsPublic       bool       `json:"isPublic"`                 // tasks.is_public
    AttachmentPath *string    `json:"attachmentPath,omitempty"` // tasks.attachment_path (nullable)
    CreatedAt      time.Time  `json:"createdAt"`                // tasks.created_at
    UpdatedAt      time.Time  `json:"updatedAt"`                // tasks.updated_at
}

// Completed reports whether the status is one of the completed spellings.
func (t Task) Completed() bool {
    return IsCompletedStatus(t.Status)
}

// IsCompletedStatus treats "done" and "completed" (any case) as completed.
func IsCompletedStatus(s string) bool {
    s = strings.ToLower(strings.TrimSpace(s))
    return s == StatusDone || s == StatusCompleted
}
