package marketdata

import (
	"fmt"
	"strings"
)

// NotFoundError reports that a query matched no known security.
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no security matches %q", e.Query)
}

// AmbiguousMatchError reports that a query matched several securities and
// the caller did not allow picking one automatically.
type AmbiguousMatchError struct {
	Query   string
	Matches []Security
}

func (e *AmbiguousMatchError) Error() string {
	names := make([]string, len(e.Matches))
	for i, s := range e.Matches {
		names[i] = s.Code + " " + s.Name
	}
	return fmt.Sprintf("%q matches %d securities: %s", e.Query, len(e.Matches), strings.Join(names, ", "))
}

// DataUnavailableError reports that history for a security could not be
// fetched.
type DataUnavailableError struct {
	Code string
	Err  error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("no data for %s: %v", e.Code, e.Err)
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}
