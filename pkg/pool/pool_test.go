package pool

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPoolRoundTrip(t *testing.T) {
	r := GetRecord()
	r.ID = "rec-test"
	r.SetData("key", "PROJ-1")
	r.SetMetadata("page", 2)
	r.Metadata.Source = "jira"
	r.Metadata.Resource = "issues"

	val, ok := r.GetData("key")
	require.True(t, ok)
	assert.Equal(t, "PROJ-1", val)

	r.Release()

	// A fresh record must not leak previous state.
	r2 := GetRecord()
	defer r2.Release()
	assert.Empty(t, r2.ID)
	assert.Empty(t, r2.Data)
	assert.Empty(t, r2.Metadata.Source)
	_, ok = r2.GetMetadata("page")
	assert.False(t, ok)
}

func TestNewRecordFromPool(t *testing.T) {
	r := NewRecordFromPool("jira")
	defer r.Release()

	assert.True(t, strings.HasPrefix(r.ID, "rec-"))
	assert.Equal(t, "jira", r.Metadata.Source)
	assert.WithinDuration(t, time.Now(), r.Metadata.Timestamp, time.Second)
}

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := GenerateID("batch")
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestGetBatchSliceCapacity(t *testing.T) {
	batch := GetBatchSlice(5000)
	defer PutBatchSlice(batch)

	assert.Len(t, batch, 0)
	assert.GreaterOrEqual(t, cap(batch), 5000)
}

func TestTypedPoolStats(t *testing.T) {
	p := New(
		func() *[]int { s := make([]int, 0, 4); return &s },
		func(s *[]int) { *s = (*s)[:0] },
	)

	obj := p.Get()
	*obj = append(*obj, 1, 2, 3)
	p.Put(obj)

	allocated, inUse, hits, _ := p.Stats()
	assert.GreaterOrEqual(t, allocated, int64(1))
	assert.Equal(t, int64(0), inUse)
	assert.GreaterOrEqual(t, hits, int64(1))

	reused := p.Get()
	assert.Len(t, *reused, 0)
	p.Put(reused)
}
