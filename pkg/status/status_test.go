package status

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoard_PhasesAndSubscribers(t *testing.T) {
	b := NewBoard()
	assert.Equal(t, PhaseIdle, b.Phase())

	var seen []Phase
	b.Subscribe(func(s Snapshot) { seen = append(seen, s.Phase) })

	b.SetPhase(PhaseLoading)
	b.SetPhase(PhaseReady)
	b.SetModelsLoaded(true)

	assert.Equal(t, []Phase{PhaseLoading, PhaseReady, PhaseReady}, seen)
	snap := b.Snapshot()
	assert.True(t, snap.ModelsOK)
	require.Len(t, snap.RecentLogs, 2)
	assert.Equal(t, "phase", snap.RecentLogs[0].Type)
}

func TestBoard_ReportError(t *testing.T) {
	b := NewBoard()
	b.SetPhase(PhaseDetecting)

	b.ReportError(SourceDetect, errors.New("tick failed"), false)
	snap := b.Snapshot()
	assert.Equal(t, PhaseDetecting, snap.Phase, "non-fatal errors keep the phase")
	require.NotNil(t, snap.LastError)
	assert.Equal(t, SourceDetect, snap.LastError.Source)

	b.ReportError(SourceModels, errors.New("bad file"), true)
	assert.Equal(t, PhaseError, b.Phase())

	b.ReportError(SourceModels, nil, true)
	assert.Equal(t, "bad file", b.Snapshot().LastError.Message)

	b.ClearError()
	assert.Nil(t, b.Snapshot().LastError)
}

func TestBoard_EventLogBounded(t *testing.T) {
	b := NewBoard()
	for i := 0; i < maxEvents+25; i++ {
		b.Info(fmt.Sprintf("event %d", i))
	}
	logs := b.Snapshot().RecentLogs
	require.Len(t, logs, maxEvents)
	assert.Equal(t, "event 25", logs[0].Message)
}

func TestBoard_SnapshotIsCopy(t *testing.T) {
	b := NewBoard()
	b.ReportError(SourceCapture, errors.New("denied"), false)
	s := b.Snapshot()
	s.LastError.Message = "changed"
	assert.Equal(t, "denied", b.Snapshot().LastError.Message)
}

func TestBoard_StatsDoNotLog(t *testing.T) {
	b := NewBoard()
	b.UpdateStats(Stats{Ticks: 3, Skipped: 1})
	snap := b.Snapshot()
	assert.EqualValues(t, 3, snap.Stats.Ticks)
	assert.Empty(t, snap.RecentLogs)
}

func TestBoard_ConcurrentUpdatesDeliverInOrder(t *testing.T) {
	b := NewBoard()
	var seqs []uint64
	b.Subscribe(func(s Snapshot) { seqs = append(seqs, s.Seq) })

	const workers, per = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				if i%2 == 0 {
					b.UpdateStats(Stats{Ticks: uint64(i)})
				} else {
					b.Info(fmt.Sprintf("worker %d step %d", w, i))
				}
			}
		}(w)
	}
	wg.Wait()

	require.Len(t, seqs, workers*per)
	for i, s := range seqs {
		assert.EqualValues(t, i+1, s, "delivery %d out of order", i)
	}
	assert.EqualValues(t, workers*per, b.Snapshot().Seq)
}
