package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vslmanager/lifecycle"
	"vslmanager/state"
)

func installationFlags() *pflag.FlagSet {
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.String("name", "", "")
	f.String("path", "", "")
	f.String("version", "", "")
	f.String("start-params", "", "")
	f.Int("backups-limit", state.DefaultBackupsLimit, "")
	f.Bool("backups-auto", false, "")
	f.Int("compression", state.DefaultCompressionLevel, "")
	f.Bool("mesa-glthread", false, "")
	return f
}

func TestApplyInstallationFlagsOnlyChanged(t *testing.T) {
	f := installationFlags()
	require.NoError(t, f.Parse([]string{"--name", "Renamed world", "--backups-limit", "0", "--mesa-glthread"}))

	in := lifecycle.InputFrom(state.Installation{
		Name:             "Original",
		Path:             "/games/original",
		Version:          testGameVersion,
		StartParams:      "--tracelog",
		BackupsLimit:     5,
		BackupsAuto:      true,
		CompressionLevel: 9,
	})
	applyInstallationFlags(f, &in)

	assert.Equal(t, "Renamed world", in.Name)
	assert.Equal(t, 0, in.BackupsLimit)
	assert.True(t, in.MesaGlThread)

	assert.Equal(t, "/games/original", in.Path)
	assert.Equal(t, testGameVersion, in.Version)
	assert.Equal(t, "--tracelog", in.StartParams)
	assert.True(t, in.BackupsAuto)
	assert.Equal(t, 9, in.CompressionLevel)
}

func TestPrintInstallations(t *testing.T) {
	var buf bytes.Buffer
	printInstallations(&buf, state.Config{})
	assert.Contains(t, buf.String(), "No installations yet")

	buf.Reset()
	printInstallations(&buf, state.Config{Installations: []state.Installation{{
		ID:              "0123456789abcdef",
		Name:            "Survival World",
		Path:            "/games/survival",
		Version:         testGameVersion,
		ModsCount:       4,
		Backups:         []state.Backup{{ID: "b1"}, {ID: "b2"}},
		LastTimePlayed:  state.NeverPlayed,
		TotalTimePlayed: 90 * time.Minute,
	}}})
	out := buf.String()
	assert.Contains(t, out, "Survival World")
	assert.Contains(t, out, "01234...")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "1h30m")
	assert.Contains(t, out, "/games/survival")
}
