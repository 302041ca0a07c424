// Package state records generation, load and training runs and login users in SQLite.
package state

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a run or user does not exist.
var ErrNotFound = errors.New("not found")

// RunKind identifies the command that produced a run.
type RunKind string

// Run kinds.
const (
	RunKindGenerate RunKind = "generate"
	RunKindLoad     RunKind = "load"
	RunKindTrain    RunKind = "train"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded invocation.
type Run struct {
	ID          string
	Kind        RunKind
	Status      RunStatus
	Seed        uint64
	ParamsJSON  string
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Default user role assigned on first login.
const DefaultRole = "student"

// User is a login identity.
type User struct {
	ID        int64
	Email     string
	Role      string
	CreatedAt time.Time
}

// Store is the state persistence interface.
type Store interface {
	CreateRun(ctx context.Context, kind RunKind, seed uint64, params any) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	GetOrCreateUser(ctx context.Context, email string) (*User, error)
	GetUser(ctx context.Context, email string) (*User, error)

	Close() error
}
