package util

import (
	"os"

	"github.com/sirupsen/logrus"
)

// ----------------------------
// ----- Globals --------------
// ----------------------------

// Log is the package-level structured logger every other package logs
// through, the same centralizing role the teacher's util package played
// for the compiler's diagnostics -- replacing its bare fmt.Println calls
// with leveled, structured output. The only field this package attaches is
// run_id (see WithRun).
var Log = logrus.New()

// ---------------------
// ----- Functions -----
// ---------------------

func init() {
	Log.SetOutput(os.Stderr)
	Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// SetVerbose switches Log between info- and debug-level output, driven by
// the --verbose CLI flag.
func SetVerbose(verbose bool) {
	if verbose {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
}

// WithRun returns a logger entry stamped with a run's correlation ID, used
// for the run-level log lines the CLI driver emits.
func WithRun(runID string) *logrus.Entry {
	return Log.WithField("run_id", runID)
}
