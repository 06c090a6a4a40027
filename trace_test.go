package reenact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrace_Save(t *testing.T) {
	trace := &PoseTrace{Title: "source"}
	for i := 0; i < 5; i++ {
		trace.Record(FrameStats{Index: i, Yaw: float64(i * 10), Pitch: -float64(i), Roll: 2})
	}
	require.Len(t, trace.Frames, 5)

	dst := filepath.Join(t.TempDir(), "trace.png")
	require.NoError(t, trace.Save(dst))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestTrace_SaveEmpty(t *testing.T) {
	trace := &PoseTrace{}
	assert.Error(t, trace.Save(filepath.Join(t.TempDir(), "trace.png")))
}
