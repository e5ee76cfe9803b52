package natsgath

import (
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/internal/gatherer/streamgath"
)

// New creates a gatherer that streams a job's messages to the given inbox
// subject.
func New(nc *nats.Conn, jobID string, kind api.JobKind, inbox string, log *slog.Logger) *streamgath.Gatherer {
	return streamgath.New(&publisher{nc: nc, inbox: inbox}, jobID, kind, log)
}
