package common

import "fmt"

var (
	ErrInvalidArgument    = fmt.Errorf("invalid argument")
	ErrAlreadyInProgress  = fmt.Errorf("download already in progress")
	ErrCacheLimitExceeded = fmt.Errorf("cache limit exceeded")
	ErrNotDownloaded      = fmt.Errorf("episode is not downloaded")
	ErrNoEpisodesFound    = fmt.Errorf("no episodes found")
)

// TransferError reports a byte transfer that finished with a non-200 status.
// No ledger state is written on this path, so the caller may retry.
type TransferError struct {
	StatusCode int
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed with status code: %d", e.StatusCode)
}
