package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules() CounselRules {
	return CounselRules{
		SodiumMgMax:       2000,
		PotassiumMgLimit:  2500,
		PhosphorusMgLimit: 1000,
		HazardFoods: map[string]string{
			"grapefruit": "May interact with certain medications; verify with clinician.",
			"star fruit": "Neurotoxic risk in kidney disease; generally avoid.",
		},
	}
}

func TestCounselNoFlags(t *testing.T) {
	c := NewCounsel(testRules())

	flags := c.Flags("what should I eat for breakfast", "- Oatmeal is a good choice")
	assert.Empty(t, flags)
}

func TestCounselHazardFood(t *testing.T) {
	c := NewCounsel(testRules())

	flags := c.Flags("is star fruit okay with CKD", "- Avoid star fruit entirely")
	require.Len(t, flags, 1)
	assert.Contains(t, flags[0], "hazard:star fruit")
	assert.Contains(t, flags[0], "Neurotoxic risk")
}

func TestCounselHazardOrderDeterministic(t *testing.T) {
	c := NewCounsel(testRules())

	flags := c.Flags("star fruit and grapefruit juice", "")
	require.Len(t, flags, 2)
	// 危害食物标注按关键词字典序
	assert.Contains(t, flags[0], "hazard:grapefruit")
	assert.Contains(t, flags[1], "hazard:star fruit")
}

func TestCounselThresholdBreach(t *testing.T) {
	c := NewCounsel(testRules())

	flags := c.Flags("sodium intake", "- Aim for about 3000 mg sodium per day")
	require.Len(t, flags, 1)
	assert.Contains(t, flags[0], "threshold:sodium")
	assert.Contains(t, flags[0], "2000 mg/day")
}

func TestCounselThresholdWithinLimit(t *testing.T) {
	c := NewCounsel(testRules())

	flags := c.Flags("sodium intake", "- Keep sodium under 1500 mg per day")
	assert.Empty(t, flags)
}

func TestCounselAmountWithoutNutrientContext(t *testing.T) {
	c := NewCounsel(testRules())

	// 数值离营养素太远或无营养素时不标注
	flags := c.Flags("vitamin D", "- A typical supplement is 5000 mg of fish oil")
	assert.Empty(t, flags)
}

func TestCounselNeverRewritesAnswer(t *testing.T) {
	c := NewCounsel(testRules())

	answer := "- Grapefruit raises drug levels"
	_ = c.Flags("grapefruit", answer)
	assert.Equal(t, "- Grapefruit raises drug levels", answer)
}
