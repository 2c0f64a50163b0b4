package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePattern(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{
			name:     "strips digits",
			message:  "timeout after 5000ms on attempt 3",
			expected: "timeout after ms on attempt",
		},
		{
			name:     "strips uuids",
			message:  "order 550e8400-e29b-41d4-a716-446655440000 not found",
			expected: "order not found",
		},
		{
			name:     "strips iso dates",
			message:  "job failed at 2024-03-01T12:30:45Z retrying",
			expected: "job failed at retrying",
		},
		{
			name:     "strips bare dates",
			message:  "backup 2024-03-01 incomplete",
			expected: "backup incomplete",
		},
		{
			name:     "collapses whitespace",
			message:  "error   in    handler",
			expected: "error in handler",
		},
		{
			name:     "empty message",
			message:  "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePattern(tt.message))
		})
	}
}

func TestNormalizePattern_Truncates(t *testing.T) {
	long := strings.Repeat("x", 200)
	result := NormalizePattern(long)
	assert.Len(t, result, 50)
}

func TestNormalizePattern_SameFaultSamePattern(t *testing.T) {
	a := NormalizePattern("GET /api/orders/8841 failed with 500 at 2024-03-01T10:00:00Z")
	b := NormalizePattern("GET /api/orders/131 failed with 500 at 2024-04-17T22:15:09Z")
	assert.Equal(t, a, b)
}
