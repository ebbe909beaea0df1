package peripherals

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timone-gs/timone-link/internal/protocol"
)

func writeProfile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(content), 0o644))
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "barometer", `{
		"name": "barometer",
		"peripheral_id": 3,
		"poll_command": 0,
		"payload": "barometer",
		"description": "MS5607 Druck/Temperatur"
	}`)

	loader, err := NewProfileLoader([]string{dir})
	require.NoError(t, err)

	profile, err := loader.Load("barometer")
	require.NoError(t, err)
	require.Equal(t, "barometer", profile.Name)
	require.Equal(t, protocol.PeripheralBarometer, PeripheralID(profile))
	require.Equal(t, protocol.CmdGetAll, PollCommand(profile))

	// Zweiter Load kommt aus dem Cache, auch wenn die Datei verschwindet
	require.NoError(t, os.Remove(filepath.Join(dir, "barometer.json")))
	cached, err := loader.Load("barometer")
	require.NoError(t, err)
	require.Same(t, profile, cached)
}

func TestLoadProfileSchemaRejection(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "bad_payload", `{
		"name": "bad_payload",
		"peripheral_id": 1,
		"poll_command": 0,
		"payload": "telemetry"
	}`)
	writeProfile(t, dir, "missing_id", `{
		"name": "missing_id",
		"poll_command": 0,
		"payload": "radio"
	}`)
	writeProfile(t, dir, "bad_name", `{
		"name": "Bad Name",
		"peripheral_id": 1,
		"poll_command": 0,
		"payload": "radio"
	}`)

	loader, err := NewProfileLoader([]string{dir})
	require.NoError(t, err)

	for _, name := range []string{"bad_payload", "missing_id", "bad_name"} {
		_, err := loader.Load(name)
		require.ErrorContains(t, err, "validation failed", "profile %s", name)
	}
}

func TestLoadProfileNotFound(t *testing.T) {
	loader, err := NewProfileLoader([]string{t.TempDir()})
	require.NoError(t, err)

	_, err = loader.Load("ghost")
	require.ErrorContains(t, err, "profile not found")
}

func TestLoadAllPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "system", `{"name":"system","peripheral_id":0,"poll_command":1,"payload":"status"}`)
	writeProfile(t, dir, "lora_915", `{"name":"lora_915","peripheral_id":1,"poll_command":0,"payload":"radio"}`)

	loader, err := NewProfileLoader([]string{dir})
	require.NoError(t, err)

	profiles, err := loader.LoadAll([]string{"lora_915", "system"})
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	require.Equal(t, "lora_915", profiles[0].Name)
	require.Equal(t, "system", profiles[1].Name)
}
