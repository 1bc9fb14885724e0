package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transmission-sim/transmission-sim/sim/params"
)

func TestDefaults_PrintedDocumentLoadsStrictly(t *testing.T) {
	// GIVEN the printed defaults
	var buf bytes.Buffer
	want := DefaultsFor(params.LoadDefaultParameters())
	require.NoError(t, writeDefaults(&buf, want))

	// WHEN parsed back with strict field checking
	path := writeFile(t, "defaults.yaml", buf.String())
	got, err := loadDefaults(path)

	// THEN every section is recognised
	require.NoError(t, err)
	assert.Equal(t, want.Disease, got.Disease)
	assert.Len(t, got.SpeciesPresets, 3)
	assert.Contains(t, got.OverrideNames, "dur_D")
}

func TestLoadDefaults_UnknownKeyRejected(t *testing.T) {
	path := writeFile(t, "defaults.yaml", "seed: 1\nsurprise: true\n")
	_, err := loadDefaults(path)
	assert.ErrorContains(t, err, "surprise")
}

func TestCheckFile_Scenario(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		var buf bytes.Buffer
		path := writeFile(t, "ok.yaml", yamlSeedScenario)
		require.NoError(t, checkFile(&buf, path))
		assert.Contains(t, buf.String(), "ok")
	})

	t.Run("every violation listed", func(t *testing.T) {
		var buf bytes.Buffer
		path := writeFile(t, "bad.yaml", "timesteps: 1\ninit_eir: 1\noverrides: {dur_D: -1, b0: 2}\n")
		err := checkFile(&buf, path)
		require.Error(t, err)
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		assert.GreaterOrEqual(t, len(lines), 2)
	})
}

func TestCheckFile_DefaultsDocument(t *testing.T) {
	var printed bytes.Buffer
	require.NoError(t, writeDefaults(&printed, DefaultsFor(params.LoadDefaultParameters())))

	t.Run("printed defaults are valid", func(t *testing.T) {
		var buf bytes.Buffer
		path := writeFile(t, "defaults.yaml", printed.String())
		require.NoError(t, checkFile(&buf, path))
		assert.Contains(t, buf.String(), "ok")
	})

	t.Run("edited section checked by its builder", func(t *testing.T) {
		// GIVEN a defaults document with a bad disease value and a species
		// mix that does not sum to one
		var buf bytes.Buffer
		path := writeFile(t, "edited.yaml", "disease:\n  max_age: 0.5\nproportions: [0.4]\n")

		// WHEN checked
		err := checkFile(&buf, path)

		// THEN violations from both sections are listed
		var ve *params.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.True(t, ve.Has("max_age"))
		assert.True(t, ve.Has("proportions"))
		assert.Contains(t, buf.String(), "max_age")
	})

	t.Run("neither document reports the scenario error", func(t *testing.T) {
		path := writeFile(t, "other.yaml", "surprise: true\n")
		err := checkFile(&bytes.Buffer{}, path)
		assert.ErrorContains(t, err, "parsing scenario")
	})
}

func TestDefaults_SnapshotKeepsDocumentValues(t *testing.T) {
	d := DefaultsFor(params.LoadDefaultParameters())
	d.Seed = 77
	d.HumanPopulation = 250
	d.Disease.DurE = 9

	s, err := d.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, int64(77), s.Seed)
	assert.Equal(t, 250, s.HumanPopulation)
	assert.Equal(t, 9.0, s.Disease.DurE)
	assert.Equal(t, d.Species, s.Species)
}
