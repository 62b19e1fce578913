package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypes_RoundTrip(t *testing.T) {
	for i := 0; i < EmotionCount; i++ {
		got, err := ParseEmotionType(EmotionType(i).String())
		require.NoError(t, err)
		assert.Equal(t, EmotionType(i), got)
	}
	for i := 0; i < RelationshipCount; i++ {
		got, err := ParseRelationshipType(RelationshipType(i).String())
		require.NoError(t, err)
		assert.Equal(t, RelationshipType(i), got)
	}
	for i := 0; i < GoalCount; i++ {
		got, err := ParseGoalType(GoalType(i).String())
		require.NoError(t, err)
		assert.Equal(t, GoalType(i), got)
	}
	for i := 0; i < ContextCount; i++ {
		got, err := ParseContextType(ContextType(i).String())
		require.NoError(t, err)
		assert.Equal(t, ContextType(i), got)
	}
}

func TestParseTypes_Wildcards(t *testing.T) {
	g, err := ParseGoalType("")
	require.NoError(t, err)
	assert.Equal(t, GoalAny, g)

	c, err := ParseContextType("ANY")
	require.NoError(t, err)
	assert.Equal(t, ContextAny, c)

	_, err = ParseEmotionType("grumpy")
	assert.Error(t, err)
	_, err = ParseRelationshipType("")
	assert.Error(t, err)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(0.9+0.5))
	assert.Equal(t, -1.0, Clamp(-3))
	assert.Equal(t, 0.25, Clamp(0.25))
}

func TestPhrases(t *testing.T) {
	assert.Equal(t, "sad", Happy.Adjective(-0.2))
	assert.Equal(t, "happy", Happy.Adjective(0))
	assert.Equal(t, "hate for", Love.Phrase(-0.5))
	assert.Equal(t, "protective of", Protective.Phrase(0.5))
}

func TestViolate_PanicsWithInvariantError(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(*InvariantError)
		require.True(t, ok)
		assert.Contains(t, err.Error(), "actor 7")
	}()
	Violate("actor %d out of range", 7)
}
