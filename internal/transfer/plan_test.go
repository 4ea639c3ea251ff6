package transfer

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPlan(t *testing.T) {
	t.Parallel()
	const mb = int64(1024 * 1024)
	tests := []struct {
		name    string
		size    int64
		ceiling int64
		parts   int
		split   bool
	}{
		{"under ceiling", 10 * mb, 49 * mb, 1, false},
		{"exactly at ceiling", 49 * mb, 49 * mb, 1, false},
		{"one byte over", 49*mb + 1, 49 * mb, 2, true},
		{"120MB at 49MB ceiling", 120 * mb, 49 * mb, 3, true},
		{"exact multiple", 98 * mb, 49 * mb, 2, true},
		{"zero ceiling never splits", 120 * mb, 0, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			plan := NewPlan(tt.size, tt.ceiling)
			assert.Equal(t, tt.parts, plan.PartCount)
			assert.Equal(t, tt.split, plan.Split())
		})
	}
}

func TestNewPlan_CoversSize(t *testing.T) {
	t.Parallel()
	const ceiling = int64(1000)
	for size := int64(1); size <= 5000; size += 321 {
		plan := NewPlan(size, ceiling)
		covered := int64(plan.PartCount) * ceiling
		assert.GreaterOrEqual(t, covered, size)
		assert.Less(t, covered-ceiling, size, "one part too many for size %d", size)
	}
}

func TestPartName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "talk_part001of003.mp4", PartName("talk", 1, 3, ".mp4"))
	assert.Equal(t, "talk_part003of003.mp4", PartName("talk", 3, 3, ".mp4"))
	assert.Equal(t, "mix_part012of120.mp3", PartName("mix", 12, 120, ".mp3"))

	shape := regexp.MustCompile(`^talk_part\d{3}of\d{3}\.mp4$`)
	for i := 1; i <= 3; i++ {
		assert.Regexp(t, shape, PartName("talk", i, 3, ".mp4"))
	}
}

func TestMergedName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "talk_merged.mp4", MergedName("talk", ".mp4"))
}
