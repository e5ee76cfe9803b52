package streamgath

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPublisher struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (p *memPublisher) Publish(_ context.Context, msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *memPublisher) decode(t *testing.T, i int) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(p.msgs[i], &m))
	return m
}

func newGatherer() (*Gatherer, *memPublisher) {
	pub := &memPublisher{}
	return New(pub, "job-7", api.RunSubmissionJob, slog.New(slog.NewTextHandler(io.Discard, nil))), pub
}

func TestTrimStrToRect(t *testing.T) {
	assert.Equal(t, "", trimStrToRect("", 2, 3))
	assert.Equal(t, "abc", trimStrToRect("abc", 2, 3))
	assert.Equal(t, "abc[...]", trimStrToRect("abcd", 2, 3))
	assert.Equal(t, "a\nb\n[...]", trimStrToRect("a\nb\nc", 2, 3))
}

func TestMessagesCarryHeader(t *testing.T) {
	g, pub := newGatherer()
	g.StartJob("linux")
	g.StartCompile(api.Candidate)
	g.FinishCompile(api.Candidate, true)
	g.FinishJob(api.JobResponse{JobID: "job-7", Status: api.Success})

	require.Len(t, pub.msgs, 4)
	types := []string{"job_start", "compile_start", "compile_finish", "job_finish"}
	for i, want := range types {
		m := pub.decode(t, i)
		assert.Equal(t, "job-7", m["job_id"])
		assert.Equal(t, want, m["msg_type"])
	}
	assert.Equal(t, true, pub.decode(t, 2)["cached"])
}

func TestReachTestPreviews(t *testing.T) {
	g, pub := newGatherer()
	items := make([]any, 200)
	for i := range items {
		items[i] = int32(i)
	}
	call := value.Call{Name: "sum", Args: []value.Value{value.NewList(value.Int32, items...)}}

	g.ReachTest(api.TestCase{ID: "visible", Input: call, ExpectedOutput: value.NewSingle(value.Int64, int64(19900))})
	g.ReachTest(api.TestCase{ID: "hidden", Input: call, Hidden: true})
	g.ReachTest(api.TestCase{ID: "fresh", Input: call})

	visible := pub.decode(t, 0)
	input, _ := visible["input"].(string)
	assert.True(t, strings.HasSuffix(input, "[...]"))
	assert.Equal(t, "19900", visible["answer"])

	hidden := pub.decode(t, 1)
	assert.Nil(t, hidden["input"])
	assert.Nil(t, hidden["answer"])

	fresh := pub.decode(t, 2)
	assert.NotNil(t, fresh["input"])
	assert.Nil(t, fresh["answer"])
}
