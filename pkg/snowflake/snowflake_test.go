package snowflake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateMonotonic(t *testing.T) {
	node, err := NewNode(1)
	assert.NoError(t, err)

	prev := node.Generate()
	for i := 0; i < 10000; i++ {
		id := node.Generate()
		assert.Greater(t, id, prev, "ids must strictly increase")
		prev = id
	}
}

func TestSameMillisecondTieBreak(t *testing.T) {
	node, err := NewNode(1)
	assert.NoError(t, err)

	// Burst fast enough that many ids share a millisecond; the step bits
	// must still order them.
	ids := make([]int64, 1000)
	for i := range ids {
		ids[i] = node.Generate()
	}

	sameMs := 0
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
		if Time(ids[i]).Equal(Time(ids[i-1])) {
			sameMs++
		}
	}
	assert.Greater(t, sameMs, 0, "burst should produce same-millisecond ids")
}

func TestNodeRange(t *testing.T) {
	_, err := NewNode(-1)
	assert.Error(t, err)
	_, err = NewNode(1024)
	assert.Error(t, err)
	_, err = NewNode(1023)
	assert.NoError(t, err)
}

func TestTimeRoundTrip(t *testing.T) {
	node, _ := NewNode(3)
	before := time.Now().Truncate(time.Millisecond)
	id := node.Generate()
	after := time.Now()

	ts := Time(id)
	assert.False(t, ts.Before(before))
	assert.False(t, ts.After(after))
}

func TestFloor(t *testing.T) {
	node, _ := NewNode(0)
	id := node.Generate()
	ts := Time(id)

	// Every id minted at or after ts is >= Floor(ts).
	assert.GreaterOrEqual(t, id, Floor(ts))
	// Ids from the next millisecond on are strictly above this id.
	assert.Greater(t, Floor(ts.Add(time.Millisecond)), id)

	// Times before the epoch clamp to zero.
	assert.Equal(t, int64(0), Floor(time.Unix(0, 0)))
}
