package logging_test

import (
	"bytes"
	"testing"

	"github.com/jrsteele09/go-finadmin-client/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestRetryLogger_FollowsGlobalLoggerReplacedLater(t *testing.T) {
	previous := log.Logger
	previousLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = previous
		zerolog.SetGlobalLevel(previousLevel)
	})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	retryLogger := logging.RetryLogger{}

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)
	retryLogger.Warn("retrying request", "url", "http://backend/admin/me", "attempt", 1)

	require.Contains(t, buf.String(), `"message":"retrying request"`)
	require.Contains(t, buf.String(), `"url":"http://backend/admin/me"`)
	require.Contains(t, buf.String(), `"level":"warn"`)
}

func TestRetryLogger_ExplicitLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)
	retryLogger := logging.RetryLogger{Logger: &logger}

	retryLogger.Debug("hidden")
	retryLogger.Error("request failed", "status", 429)

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"status":429`)
}
