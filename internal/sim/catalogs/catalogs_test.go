package catalogs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tattletale/internal/sim/model"
)

const sampleCatalog = `[
  {
    "prototype": {
      "name": "chat",
      "description": "{0} chats with {1}",
      "passive_description": "chatted with {0}",
      "active_description": "chatted with {1}",
      "absolute_interest": 1,
      "tags": ["social"],
      "participant_count": 2,
      "wealth": [0, 0],
      "emotions": [{"happy": 0.1}, {"happy": 0.05}],
      "relationships": [
        [{"participant": 1, "changes": {"friendship": 0.1}}],
        [{"participant": 0, "changes": {"friendship": 0.1, "love": 0.02}}]
      ]
    },
    "requirements": {"context": "freetime", "goal_type": "any"},
    "tendencies": {
      "contexts": {"freetime": 0.5, "course": -0.5},
      "emotions": {"extroverted": 0.4},
      "relationships": [{"friendship": 1}]
    }
  },
  {
    "prototype": {
      "name": "study",
      "description": "{} studies",
      "participant_count": 1,
      "wealth": [0.1]
    },
    "requirements": {"context": "course", "day": 2, "emotions": [{"calm": 0.2}]},
    "tendencies": {"wealth": 1}
  }
]`

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o644))
	return dir
}

func TestLoad_BindsDefinitions(t *testing.T) {
	c, err := Load(writeCatalog(t, sampleCatalog))
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Len(t, c.Digest, 64)

	chat := c.Get(0)
	assert.Equal(t, "chat", chat.Name())
	assert.Equal(t, 2, chat.ParticipantCount())
	assert.Equal(t, model.ContextFreetime, chat.Requirement.Context)
	assert.Equal(t, model.GoalAny, chat.Requirement.Goal)
	assert.Equal(t, 0.1, chat.Prototype.Emotions[0][model.Happy])
	assert.Equal(t, 0.02, chat.Prototype.Relationships[1][0][model.Love])
	assert.Equal(t, 0.5, chat.Tendency.Contexts[model.ContextFreetime])
	assert.Equal(t, -0.5, chat.Tendency.Contexts[model.ContextCourse])
	assert.Equal(t, 1.0, chat.Tendency.Relationships[0][model.Friendship])
	assert.False(t, chat.Requirement.HasRelationshipRequirement(1))

	study, ok := c.ByName("study")
	require.True(t, ok)
	assert.Equal(t, 1, study.ID)
	assert.Equal(t, 2, study.Requirement.Day)
	assert.Equal(t, model.GoalAny, study.Requirement.Goal)
	// Missing per-slot tables are padded.
	assert.Len(t, study.Prototype.Emotions, 1)
	assert.Len(t, study.Requirement.Relationships, 0)
	assert.Equal(t, 0.2, study.Requirement.Emotions[0][model.Calm])
}

func TestLoad_DigestIsStable(t *testing.T) {
	dir := writeCatalog(t, sampleCatalog)
	a, err := Load(dir)
	require.NoError(t, err)
	b, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, a.Digest, b.Digest)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"out of range scalar": `[{"prototype":{"name":"x","description":"","participant_count":1,"wealth":[1.5]},"requirements":{},"tendencies":{}}]`,
		"missing prototype":   `[{"requirements":{},"tendencies":{}}]`,
		"unknown emotion":     `[{"prototype":{"name":"x","description":"","participant_count":1,"emotions":[{"grumpy":0.1}]},"requirements":{},"tendencies":{}}]`,
		"self target":         `[{"prototype":{"name":"x","description":"","participant_count":2,"relationships":[[{"participant":0,"changes":{"love":0.1}}]]},"requirements":{},"tendencies":{}}]`,
		"target out of range": `[{"prototype":{"name":"x","description":"","participant_count":2,"relationships":[[{"participant":2,"changes":{"love":0.1}}]]},"requirements":{},"tendencies":{}}]`,
		"too many slots":      `[{"prototype":{"name":"x","description":"","participant_count":1,"wealth":[0,0]},"requirements":{},"tendencies":{}}]`,
		"empty catalog":       `[]`,
		"not json":            `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeCatalog(t, body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestBind_AlignsTables(t *testing.T) {
	c := Bind(
		[]Prototype{{Name: "a", ParticipantCount: 1}, {Name: "b", ParticipantCount: 2}},
		[]Requirement{{Context: model.ContextAny, Goal: model.GoalAny}, {Context: model.ContextCourse, Goal: model.GoalPower}},
		[]Tendency{{Wealth: 1}, {}},
	)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, 1.0, c.Get(0).Tendency.Wealth)
	assert.Equal(t, model.GoalPower, c.Get(1).Requirement.Goal)
	assert.Len(t, c.Get(1).Tendency.Relationships, 1)
}

func TestBind_MisalignedPanics(t *testing.T) {
	assert.Panics(t, func() {
		Bind([]Prototype{{Name: "a", ParticipantCount: 1}}, nil, nil)
	})
}

func TestGet_UnknownPanics(t *testing.T) {
	c := New([]Definition{{Prototype: Prototype{Name: "a", ParticipantCount: 1}}})
	assert.Panics(t, func() { c.Get(1) })
	assert.Panics(t, func() { c.Get(-1) })
}

func TestMeetsThreshold(t *testing.T) {
	assert.True(t, MeetsThreshold(-0.5, 0))
	assert.True(t, MeetsThreshold(0.3, 0.3))
	assert.False(t, MeetsThreshold(0.2, 0.3))
	assert.True(t, MeetsThreshold(-0.4, -0.3))
	assert.False(t, MeetsThreshold(-0.2, -0.3))
}
