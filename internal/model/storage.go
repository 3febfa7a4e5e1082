package model

import "context"

// Keys under which every backing stores credential fields.
const (
	KeyAuthToken    = "authToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
	KeyUserID       = "userId"
)

// Record is the serialized form of a session as held by one backing.
type Record struct {
	AuthToken    string
	RefreshToken string
	User         string
	UserID       string
}

// IsZero reports whether the record holds no values.
func (r Record) IsZero() bool {
	return r == Record{}
}

// Backing is a storage capability holding one credential record.
// Write replaces the whole record in a single operation.
type Backing interface {
	Name() string
	Read(ctx context.Context) (Record, error)
	Write(ctx context.Context, record Record) error
	Clear(ctx context.Context) error
}
