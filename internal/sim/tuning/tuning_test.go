package tuning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_FillsDefaults(t *testing.T) {
	s, err := Load(writeYAML(t, "seed: 99\nactor_count: 12\nfirst_names: [Zed]\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(99), s.Seed)
	assert.Equal(t, 12, s.ActorCount)
	assert.Equal(t, []string{"Zed"}, s.FirstNames)
	assert.Equal(t, 5, s.WorkdaysPerWeek)
	assert.Equal(t, 4, s.CoursesPerDay)
	assert.Equal(t, 20, s.SlotsPerWeek())
	assert.Equal(t, 5, s.TicksPerDay())
	assert.NotEmpty(t, s.LastNames)
}

func TestLoad_RejectsImpossible(t *testing.T) {
	_, err := Load(writeYAML(t, "workdays_per_week: 8\n"))
	assert.ErrorContains(t, err, "workdays_per_week")

	_, err = Load(writeYAML(t, "min_start_relationships: 4\nmax_start_relationships: 2\n"))
	assert.ErrorContains(t, err, "min_start_relationships")

	_, err = Load(writeYAML(t, "actor_count: [1, 2]\n"))
	assert.ErrorContains(t, err, "tuning.yaml")
}

func TestDefaults_AreValid(t *testing.T) {
	s := Defaults()
	require.NoError(t, s.Validate())
	assert.Equal(t, s.MaxStartRelationships, s.DesiredMaxStartRelationships)
}
