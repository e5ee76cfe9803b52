// Package transport holds what the queue transports share.
package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/internal/gatherer/respbuilder"
	"github.com/programme-lv/fnjudge/internal/tester"
)

// Handler runs one job; *worker.Worker implements it.
type Handler interface {
	Handle(ctx context.Context, req api.JobRequest, gath tester.ResultGatherer) api.JobResponse
}

// DecodeRequest parses a job request body.
func DecodeRequest(body []byte) (api.JobRequest, error) {
	var req api.JobRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return api.JobRequest{}, fmt.Errorf("decode job request: %w", err)
	}
	return req, nil
}

// Rejection is the job_finish message sent for a body that could not be
// decoded into a request.
func Rejection(jobID string, err error) ([]byte, error) {
	resp := respbuilder.New(jobID, "").Build(api.JobOutput{}, err)
	return json.Marshal(api.NewFinishJob(resp))
}
