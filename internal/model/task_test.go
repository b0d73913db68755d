package model

import (
    "encoding/json"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestTaskCompleted(t *testing.T) {
    cases := map[string]bool{
        "done":        true,
        "DONE":        true,
        " completed ": true,
        "pending":     false,
        "in-progress": false,
        "":            false,
    }
    for status, want := range cases {
        assert.Equal(t, want, Task{Status: status}.Completed(), status)
    }
}

func TestAccountJSONHidesPasswordHash(t *testing.T) {
    raw, err := json.Marshal(Account{ID: 1, Email: "a@b.c", PasswordHash: "$2a$10$secret"})
    require.NoError(t, err)
    assert.NotContains(t, string(raw), "secret")
    assert.NotContains(t, string(raw), "password")
}
