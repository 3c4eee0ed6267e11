package metric

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounts_String(t *testing.T) {
	c := Counts{
		"write":  10,
		"read":   10,
		"commit": 2,
	}

	require.Equal(
		t,
		` - commit: 2
 - read: 10
 - write: 10
`,
		c.String(),
	)
}

func TestCounts_Add(t *testing.T) {
	c := Counts{"read": 5}
	c.Add(Counts{"read": 5, "write": 3})

	require.Equal(t, Counts{"read": 10, "write": 3}, c)
}

func TestCounts_AssignAndPrefix(t *testing.T) {
	c := Counts{"read": 5, "write": 5}
	merged := c.Assign(Counts{"write": 1})

	require.Equal(t, Counts{"read": 5, "write": 1}, merged)
	require.Equal(t, Counts{"read": 5, "write": 5}, c)
	require.Equal(t, Counts{"step2.read": 5, "step2.write": 1}, merged.AddPrefix("step2."))
}
