package sqsgath

import (
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/internal/gatherer/streamgath"
)

// New creates a gatherer that streams a job's messages to an SQS queue.
func New(client *sqs.Client, jobID string, kind api.JobKind, queueUrl string, log *slog.Logger) *streamgath.Gatherer {
	return streamgath.New(&publisher{client: client, queueUrl: queueUrl}, jobID, kind, log)
}
