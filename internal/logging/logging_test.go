package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToInfoLevelOnInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "not-a-level", Output: &buf})
	logger.Debug().Msg("should be filtered")
	logger.Info().Msg("should appear")

	out := buf.String()
	require.NotContains(t, out, "should be filtered")
	require.Contains(t, out, "should appear")
}

func TestNewDebugLevelEmitsDebugRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "debug", Output: &buf})
	logger.Debug().Msg("visible")

	require.Contains(t, buf.String(), "visible")
}

func TestForRuleAttachesRuleName(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "info", Output: &buf})
	logger := ForRule(base, "discount-rule", true)
	logger.Info().Msg("fired")

	out := buf.String()
	require.True(t, strings.Contains(out, `"rule":"discount-rule"`))
	require.True(t, strings.Contains(out, `"debug":true`))
}
