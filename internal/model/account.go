package model

import "time"

// Account represents an application user as stored in the `users`
// table.  The password hash is never serialized; handlers may render
// an Account directly.
//
// Fields:
//  ID           primary key identifier of the account.
//  Name         display name.
//  Email        unique email address, compared exactly as stored.
//  PasswordHash bcrypt hash of the password.
//  Active       inactive accounts are refused by the guard.
//  Avatar       storage key of the avatar image, nil until one is uploaded.
//  CreatedAt    timestamp of creation.
//  UpdatedAt    timestamp of last update.
type Account struct {
    ID           uint64    `json:"id"`        // users.id
    Name         string    `json:"name"`      // users.name
    Email        string    `json:"email"`     // users.email
    PasswordHash string    `json:"-"`         // users.password_hash
    Active       bool      `json:"active"`    // users.is_active
    Avatar       *string   `json:"avatar"`    // users.avatar_path (nullable)
    CreatedAt    time.Time `json:"createdAt"` // users.created_at
    UpdatedAt    time.Time `json:"updatedAt"` // users.updated_at
}

// PublicAccount is the view of an account shown to other callers.
type PublicAccount struct {
    ID        uint64    `json:"id"`
    Name      string    `json:"name"`
    Email     string    `json:"email"`
    Avatar    *string   `json:"avatar"`
    CreatedAt time.Time `json:"createdAt"`
}

// Public strips the fields only the account itself may see.
func (a Account) Public() PublicAccount {
    return PublicAccount{ID: a.ID, Name: a.Name, Email: a.Email, Avatar: a.Avatar, CreatedAt: a.CreatedAt}
}
