package utils

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormat_DecorateText(t *testing.T) {
	assert.Equal(t, ErrorColor+"failed"+DefaultColor, DecorateText("failed", ErrorMessage))
	assert.Equal(t, SuccessColor+"done"+DefaultColor, DecorateText("done", SuccessMessage))
	assert.Equal(t, "plain", DecorateText("plain", MessageType(42)))
}

func TestFormat_FormatTime(t *testing.T) {
	testCases := []struct {
		d    time.Duration
		want string
	}{
		{1500 * time.Millisecond, "1.50s"},
		{2*time.Minute + 3*time.Second, "2m 3.00s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h 2m 3.00s"},
		{26*time.Hour + 5*time.Second, "1d 2h 0m 5.00s"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, FormatTime(tc.d))
	}
}

func TestFormat_FormatAngle(t *testing.T) {
	assert.Equal(t, "+30.0°", FormatAngle(30))
	assert.Equal(t, "-12.3°", FormatAngle(-12.34))
}

func TestMath_Generics(t *testing.T) {
	assert.Equal(t, 2, Min(2, 5))
	assert.Equal(t, 5, Max(2, 5))
	assert.Equal(t, float32(1), Clamp(float32(1.2), 0, 1))
	assert.Equal(t, 0, Clamp(-3, 0, 255))
	assert.Equal(t, 128, Clamp(128, 0, 255))
}

func TestLog_SetLogger(t *testing.T) {
	defer SetLogger(nil)

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	Logger().Info("loaded", "group", "generator")
	assert.Contains(t, buf.String(), "group=generator")

	buf.Reset()
	SetLogger(nil)
	Logger().Info("muted")
	assert.Empty(t, buf.String())
}
