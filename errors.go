package sqlcache

import (
	"errors"
	"fmt"
)

// ErrNoGeneration is returned by Open when nothing has been published.
var ErrNoGeneration = errors.New("no committed generation")

// CommitIOError is a filesystem failure while staging or publishing a
// generation. The run is aborted and the previous generation stays current.
type CommitIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *CommitIOError) Error() string {
	return fmt.Sprintf("commit: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CommitIOError) Unwrap() error {
	return e.Err
}
