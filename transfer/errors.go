package transfer

import "fmt"

// InvalidPayloadError rejects a whole import: malformed JSON, a schema
// violation, a bad version string or an invalid locator tree.
type InvalidPayloadError struct {
	Reason string
	Err    error
}

func (e *InvalidPayloadError) Error() string {
	if e.Err == nil {
		return "transfer: invalid payload: " + e.Reason
	}
	return fmt.Sprintf("transfer: invalid payload: %s: %v", e.Reason, e.Err)
}

func (e *InvalidPayloadError) Unwrap() error { return e.Err }

// VersionError rejects a payload written by a newer major version than
// the running one.
type VersionError struct {
	Payload string
	Running string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("transfer: payload version %s is incompatible with running version %s", e.Payload, e.Running)
}
