package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/notify"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, version+"\n", out.String())
}

func TestBuildNotifierWithoutChannels(t *testing.T) {
	assert.Nil(t, buildNotifier(config.NotificationConfig{EmailFrom: "noreply@example.com"}, zap.NewNop()))
}

func TestBuildNotifierEmail(t *testing.T) {
	n := buildNotifier(config.NotificationConfig{
		EmailFrom:      "noreply@example.com",
		SupportInbox:   "support@example.com",
		SendgridAPIKey: "SG.test",
	}, zap.NewNop())

	channels, ok := n.(notify.Multi)
	require.True(t, ok)
	require.Len(t, channels, 1)
	assert.IsType(t, &notify.EmailNotifier{}, channels[0])
}
