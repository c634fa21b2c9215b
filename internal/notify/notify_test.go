package notify

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	messages   []string
	severities []Severity
}

func (r *recordingNotifier) Notify(message string, severity Severity, duration time.Duration) {
	r.messages = append(r.messages, message)
	r.severities = append(r.severities, severity)
}

func TestLogNotifier(t *testing.T) {
	t.Run("WritesStructuredLine", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		n := NewLogNotifier(&logger)

		n.Notify("request saved for later sync", SeverityWarning, 0)

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "request saved for later sync", line["message"])
		assert.Equal(t, "warning", line["severity"])
		assert.Equal(t, "warn", line["level"])
	})

	t.Run("ErrorSeverityUsesErrorLevel", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		n := NewLogNotifier(&logger)

		n.Notify("storage unavailable", SeverityError, time.Second)

		assert.Contains(t, buf.String(), `"level":"error"`)
	})

	t.Run("DefaultDurationApplied", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		n := NewLogNotifier(&logger)

		n.Notify("back online", SeveritySuccess, -1)

		// zerolog renders Dur in milliseconds
		assert.Contains(t, buf.String(), `"duration":3000`)
	})

	t.Run("NilSafe", func(t *testing.T) {
		var n *LogNotifier
		assert.NotPanics(t, func() {
			n.Notify("ignored", SeverityInfo, 0)
		})
	})
}

func TestFanout(t *testing.T) {
	first := &recordingNotifier{}
	second := &recordingNotifier{}

	f := Fanout{first, nil, second}
	f.Notify("syncing saved requests", SeveritySync, 0)

	require.Len(t, first.messages, 1)
	require.Len(t, second.messages, 1)
	assert.Equal(t, "syncing saved requests", first.messages[0])
	assert.Equal(t, SeveritySync, second.severities[0])
}

func TestTelegramNotifierSeverityFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	// Unconfigured notifier drops everything without touching the API.
	n := &TelegramNotifier{logger: &logger}
	for _, sev := range []Severity{SeveritySuccess, SeverityInfo, SeveritySync, SeverityWarning, SeverityError} {
		assert.NotPanics(t, func() {
			n.Notify("msg", sev, 0)
		})
	}
	assert.Empty(t, strings.TrimSpace(buf.String()))

	var nilNotifier *TelegramNotifier
	assert.NotPanics(t, func() {
		nilNotifier.Notify("msg", SeverityError, 0)
	})
}
