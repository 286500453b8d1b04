package global

import (
	"os"

	"github.com/go-kit/log"
)

// Logger is the process wide logfmt logger. Call sites log through
// level.Error / level.Info.
var Logger log.Logger

func init() {
	Logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	Logger = log.With(Logger, "ts", log.DefaultTimestampUTC)
}
