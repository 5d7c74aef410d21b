package timer

import "errors"

var (
	// errNoSuchTimer is returned internally when a cancel operation finds
	// no matching entry for the given actor and discriminator. The public
	// Cancel* methods on Dispatcher swallow this (cancelling a timer that
	// already fired or was never set is a silent no-op), but
	// ScheduleCore's own methods return it so tests can assert on the
	// miss directly.
	errNoSuchTimer = errors.New("no matching timer entry")
)
