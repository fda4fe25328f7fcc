package job

import "errors"

var (
	ErrLeaf    = errors.New("leaf job can't have children")
	ErrOwned   = errors.New("job already has an owner")
	ErrStarted = errors.New("job already started")
)
