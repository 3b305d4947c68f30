package actorsys

import (
	"github.com/sirupsen/logrus"
)

// fatalAbort terminates the process after a handler panic: actor state
// is unlikely to be recoverable at that point, and letting the mailbox
// keep running risks cascading corruption to whatever it touches next.
// It is a package variable, not a direct os.Exit call, so tests can
// substitute a non-terminating stand-in.
var fatalAbort = func(entry *logrus.Entry) {
	entry.Logger.Exit(1)
}
