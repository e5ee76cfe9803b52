package transport_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	req, err := transport.DecodeRequest([]byte(`{"job_id":"j1","kind":"generate_tests","generate_tests":{"submitter_id":"a"}}`))
	require.NoError(t, err)
	assert.Equal(t, api.GenerateTestsJob, req.Kind)
	assert.Equal(t, "a", req.GenerateTests.SubmitterID)

	_, err = transport.DecodeRequest([]byte(`{"job_id":`))
	assert.Error(t, err)
}

func TestRejection(t *testing.T) {
	b, err := transport.Rejection("j2", errors.New("bad body"))
	require.NoError(t, err)

	var msg api.FinishJob
	require.NoError(t, json.Unmarshal(b, &msg))
	assert.Equal(t, api.FinishJobMsg, msg.MsgType)
	assert.Equal(t, api.Failure, msg.Response.Status)
	assert.Equal(t, api.InternalServerError, msg.Response.Error.Kind)
}
