package actor

import "github.com/btcsuite/btclog/v2"

// log is the package-wide subsystem logger. It is disabled by default;
// callers that want log output must call UseLogger.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the subsystem logger used by this package. Programs that
// host the actor runtime should call this during startup, before any actor
// is spawned.
func UseLogger(logger btclog.Logger) {
	log = logger
}
