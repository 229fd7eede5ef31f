package sync

import "errors"

// Stage names the step at which a failure happened.
type Stage string

// Stages of a run, at logical database and row level.
const (
	StageDiscovery Stage = "discovery"
	StageSchema    Stage = "schema"
	StageFetchRows Stage = "fetch-rows"
	StageMapping   Stage = "mapping"
	StageWrite     Stage = "write"
	StageVerify    Stage = "verify"
	StageMark      Stage = "mark"
)

var (
	// ErrNoUser is returned when a run names no user.
	ErrNoUser = errors.New("user id is required")

	// ErrDatabaseNotEnabled is returned when a run requests a logical
	// database the configuration leaves out.
	ErrDatabaseNotEnabled = errors.New("logical database is not enabled")

	// ErrRunInProgress is returned when the user already has a run going.
	ErrRunInProgress = errors.New("a sync run is already in progress for this user")
)

// Error is a failure that is reported, not raised.
type Error struct {
	Err     error
	Message string
	Stage   Stage
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
