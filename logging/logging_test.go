package logging_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/property-engine/config"
	"github.com/warp/property-engine/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"", zapcore.InfoLevel},
		{"loud", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := logging.New(config.LogConfig{Level: tt.level, Encoding: "console"})
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestEncoderConfig_TimestampForBothEncodings(t *testing.T) {
	for _, encoding := range []string{"json", "console"} {
		t.Run(encoding, func(t *testing.T) {
			// GIVEN: A logger writing through the encoder config
			ec := logging.EncoderConfig(encoding)
			assert.Equal(t, "ts", ec.TimeKey)

			var buf bytes.Buffer
			enc := zapcore.NewJSONEncoder(ec)
			if encoding == "console" {
				enc = zapcore.NewConsoleEncoder(ec)
			}
			logger := zap.New(zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.InfoLevel))

			// WHEN: Logging one entry
			logger.Info("hello")

			// THEN: The time is ISO8601, not epoch seconds
			year := time.Now().Format("2006-")
			assert.True(t, strings.Contains(buf.String(), year), buf.String())
		})
	}
}
