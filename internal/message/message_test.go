package message

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dynamokv/internal/cluster"
	"dynamokv/internal/quorum"
	"dynamokv/internal/storage"
)

func TestFeedback_String(t *testing.T) {
	v := storage.NewValue("x", 2)
	absent := storage.Absent()

	tests := []struct {
		name     string
		fb       Feedback
		expected string
	}{
		{
			name:     "get ok",
			fb:       Feedback{RequestID: 3, Kind: quorum.Get, Status: OK, Value: &v},
			expected: "FEEDBACK: GET #3 [OK] | x (v2)",
		},
		{
			name:     "get of missing key",
			fb:       Feedback{RequestID: 4, Kind: quorum.Get, Status: OK, Value: &absent},
			expected: "FEEDBACK: GET #4 [OK] | null",
		},
		{
			name:     "update error",
			fb:       Feedback{RequestID: 7, Kind: quorum.Update, Status: Error},
			expected: "FEEDBACK: UPDATE #7 [ERROR]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.fb.String())
		})
	}
}

func TestItems_KeysSorted(t *testing.T) {
	items := Items{
		30: storage.NewValue("c", 0),
		10: storage.NewValue("a", 0),
		20: storage.NewValue("b", 0),
	}
	assert.Equal(t, []cluster.Key{10, 20, 30}, items.Keys())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("OK")
	assert.NoError(t, err)
	assert.Equal(t, OK, s)

	s, err = ParseStatus("ERROR")
	assert.NoError(t, err)
	assert.Equal(t, Error, s)

	_, err = ParseStatus("MAYBE")
	assert.Error(t, err)
}
