package timer

import "github.com/btcsuite/btclog/v2"

// log is the package-wide subsystem logger. It is disabled by default;
// cmd/timerd wires it up at startup via UseLogger, the same way it wires
// up the actor package's logger.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the subsystem logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
