package ledger

import "context"

// Store is the keyed-record collaborator holding positions and the activity
// log. Each call is atomic per record; WithinTx groups several calls into one
// unit that either fully applies or not at all.
type Store interface {
	// FindPosition returns ErrRecordNotFound when no position exists.
	FindPosition(ctx context.Context, symbol string) (Position, error)
	CreatePosition(ctx context.Context, p Position) (Position, error)
	// UpdatePosition writes p if the stored revision still equals p.Revision
	// and returns the stored row with the bumped revision. It returns
	// ErrRevisionConflict otherwise.
	UpdatePosition(ctx context.Context, p Position) (Position, error)
	DeletePosition(ctx context.Context, id string, revision int64) error
	ListPositions(ctx context.Context, f PositionFilter) (PositionList, error)

	AppendActivity(ctx context.Context, e ActivityEntry) (ActivityEntry, error)
	// FindActivityByKey returns ErrRecordNotFound when key was never used.
	FindActivityByKey(ctx context.Context, key string) (ActivityEntry, error)
	ListActivities(ctx context.Context, f ActivityFilter) (ActivityList, error)
	PurgeActivity(ctx context.Context, id string) error

	WithinTx(ctx context.Context, fn func(Store) error) error
}
