package logging

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provalia/agentcore/core"
)

func TestEventLogAppend(t *testing.T) {
	el := NewEventLog(NoOpLogger{}, 0)

	el.Log(core.EventRecord{Type: core.EventInfo, Source: "manager", Message: "agent registered"})
	el.Log(core.EventRecord{Type: core.EventError, Severity: core.EventSeverityHigh, Source: "broker", Message: "delivery failed"})

	records := el.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "manager", records[0].Source)
	assert.False(t, records[0].Timestamp.IsZero())
	assert.Equal(t, core.EventSeverityHigh, records[1].Severity)
}

func TestEventLogCapacity(t *testing.T) {
	el := NewEventLog(nil, 3)
	for i := 0; i < 5; i++ {
		el.Log(core.EventRecord{Type: core.EventInfo, Source: "s", Message: "m"})
	}
	assert.Equal(t, 3, el.Len())
}

func TestEventLogFilters(t *testing.T) {
	el := NewEventLog(nil, 0)
	el.Log(core.EventRecord{Type: core.EventInfo, Source: "a", Message: "one"})
	el.Log(core.EventRecord{Type: core.EventWarning, Source: "b", Message: "two"})
	el.Log(core.EventRecord{Type: core.EventWarning, Source: "a", Message: "three"})

	assert.Len(t, el.RecordsBySource("a"), 2)
	assert.Len(t, el.RecordsByType(core.EventWarning), 2)
	assert.Empty(t, el.RecordsByType(core.EventError))
}

func TestEventLogConcurrentWriters(t *testing.T) {
	el := NewEventLog(nil, 0)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 32; j++ {
				el.Log(core.EventRecord{Type: core.EventInfo, Source: "w", Message: "m"})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 16*32, el.Len())
}
