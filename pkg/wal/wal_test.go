package wal

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEntry struct {
	Seq  int    `json:"seq"`
	Name string `json:"name"`
}

func TestAppendAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")

	w, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, w.Append(&testEntry{Seq: 1, Name: "first"}))
	require.NoError(t, w.Append(&testEntry{Seq: 2, Name: "second"}))

	var got []testEntry
	err = w.Replay(func(raw []byte) error {
		var e testEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.Len(t, got, 2)
	assert.Equal(t, testEntry{Seq: 1, Name: "first"}, got[0])
	assert.Equal(t, testEntry{Seq: 2, Name: "second"}, got[1])
}

func TestReplaySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")

	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(&testEntry{Seq: 1}))
	require.NoError(t, w.Close())

	w, err = Open(path)
	require.NoError(t, err)
	defer w.Close()

	count := 0
	require.NoError(t, w.Replay(func([]byte) error {
		count++
		return nil
	}))
	assert.Equal(t, 1, count)
}

func TestReplayEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")

	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Replay(func([]byte) error {
		t.Fatal("callback should not run for empty log")
		return nil
	}))
}
