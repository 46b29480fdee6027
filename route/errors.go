package route

import "fmt"

// InvalidRouteError is returned whenever an operation would place two
// adjacent segments that violate the legal-successor table, or would
// otherwise leave a route malformed (missing leading chip, two
// consecutive chips, mismatched splice points).
type InvalidRouteError struct {
	Reason string
}

func (e *InvalidRouteError) Error() string {
	return fmt.Sprintf("invalid L1 route: %s", e.Reason)
}

func invalidf(format string, args ...interface{}) error {
	return &InvalidRouteError{Reason: fmt.Sprintf(format, args...)}
}
