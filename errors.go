package spectrus

import "errors"

var (
	// ErrMissingUser is returned by member actions when the member payload
	// carried no user object; no request is sent.
	ErrMissingUser = errors.New("spectrus: member has no user")
	// ErrNotReady is returned by calls that need the bound guild before
	// bootstrap has set it.
	ErrNotReady = errors.New("spectrus: client not ready")
	// ErrNoReference is returned by Message.FetchReferenced on a message that
	// does not reply to anything.
	ErrNoReference = errors.New("spectrus: message has no reference")
)
