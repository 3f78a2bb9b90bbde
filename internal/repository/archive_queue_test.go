package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	types    []string
	payloads [][]byte
}

func (p *capturePublisher) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.types = append(p.types, msgType)
	p.payloads = append(p.payloads, raw)
	return nil
}

func TestQueuedArchive_RoundTripThroughJob(t *testing.T) {
	pub := &capturePublisher{}
	qa := NewQueuedArchive(pub)

	h := sampleHistory("AAPL", 3)
	require.NoError(t, qa.StoreHistory(context.Background(), h))
	require.Len(t, pub.payloads, 1)
	assert.Equal(t, ArchiveJobType, pub.types[0])

	arch := &fakeArchive{}
	job := NewArchiveJob(arch)
	assert.Equal(t, ArchiveJobType, job.Type())
	require.NoError(t, job.Handle(context.Background(), pub.payloads[0]))

	require.Len(t, arch.stored, 1)
	got := arch.stored[0]
	assert.Equal(t, "AAPL", got.Ticker)
	require.Len(t, got.Records, 3)
	for i := range h.Records {
		assert.True(t, h.Records[i].Date.Equal(got.Records[i].Date))
		assert.Equal(t, h.Records[i].Close, got.Records[i].Close)
		assert.Equal(t, h.Records[i].Volume, got.Records[i].Volume)
	}
}

func TestQueuedArchive_SkipsEmpty(t *testing.T) {
	pub := &capturePublisher{}
	require.NoError(t, NewQueuedArchive(pub).StoreHistory(context.Background(), sampleHistory("AAPL", 0)))
	assert.Empty(t, pub.payloads)
}

func TestArchiveJob_BadPayload(t *testing.T) {
	err := NewArchiveJob(&fakeArchive{}).Handle(context.Background(), json.RawMessage(`{"records":"x"}`))
	assert.Error(t, err)
}
