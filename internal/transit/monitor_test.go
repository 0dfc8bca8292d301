package transit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerifySeals(t *testing.T) {
	tests := []struct {
		name       string
		expected   []string
		presented  []string
		intact     bool
		missing    []string
		unexpected []string
	}{
		{
			name:      "matching sets",
			expected:  []string{"S1", "S2"},
			presented: []string{"S2", "S1"},
			intact:    true,
		},
		{
			name:       "swapped seal",
			expected:   []string{"S1", "S2"},
			presented:  []string{"S1", "S3"},
			intact:     false,
			missing:    []string{"S2"},
			unexpected: []string{"S3"},
		},
		{
			name:     "subset is a violation",
			expected: []string{"S1", "S2"},
			presented: []string{
				"S1",
			},
			intact:  false,
			missing: []string{"S2"},
		},
		{
			name:       "superset is a violation",
			expected:   []string{"S1"},
			presented:  []string{"S1", "S2"},
			intact:     false,
			unexpected: []string{"S2"},
		},
		{
			name:      "empty presented set",
			expected:  []string{"S1", "S2"},
			presented: nil,
			intact:    false,
			missing:   []string{"S1", "S2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := VerifySeals(tt.expected, tt.presented)
			assert.Equal(t, tt.intact, check.Intact)
			assert.Equal(t, tt.missing, check.Missing)
			assert.Equal(t, tt.unexpected, check.Unexpected)
		})
	}
}

func TestCheckRouteCompliance(t *testing.T) {
	// Corridor roughly along a meridian: 1 degree of latitude is ~111 km.
	corridor := []Waypoint{
		{Code: "WP1", Lat: 50.0, Lon: 8.0},
		{Code: "WP2", Lat: 51.0, Lon: 8.0},
	}

	t.Run("on the corridor", func(t *testing.T) {
		check := CheckRouteCompliance(50.5, 8.0, corridor, 5)
		assert.True(t, check.Compliant)
		assert.Zero(t, check.DeviationKm)
	})

	t.Run("within tolerance", func(t *testing.T) {
		// ~0.03 degrees of longitude at 50N is about 2 km.
		check := CheckRouteCompliance(50.5, 8.03, corridor, 5)
		assert.True(t, check.Compliant)
	})

	t.Run("beyond tolerance", func(t *testing.T) {
		// ~1 degree of longitude at 50N is about 71 km.
		check := CheckRouteCompliance(50.5, 9.0, corridor, 5)
		assert.False(t, check.Compliant)
		assert.InDelta(t, 66, check.DeviationKm, 3)
	})

	t.Run("beyond the endpoint clamps to it", func(t *testing.T) {
		check := CheckRouteCompliance(52.0, 8.0, corridor, 5)
		assert.False(t, check.Compliant)
		assert.InDelta(t, 106, check.DeviationKm, 3)
	})

	t.Run("single waypoint degenerates to a point check", func(t *testing.T) {
		point := corridor[:1]
		assert.True(t, CheckRouteCompliance(50.01, 8.0, point, 5).Compliant)
		assert.False(t, CheckRouteCompliance(51.0, 8.0, point, 5).Compliant)
	})

	t.Run("empty corridor is always compliant", func(t *testing.T) {
		assert.True(t, CheckRouteCompliance(0, 0, nil, 0).Compliant)
	})
}

func TestTimeLimitExceeded(t *testing.T) {
	limit := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.False(t, TimeLimitExceeded(limit, limit.Add(-time.Minute)))
	assert.False(t, TimeLimitExceeded(limit, limit))
	assert.True(t, TimeLimitExceeded(limit, limit.Add(time.Minute)))
}
