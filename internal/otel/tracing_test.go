package otel

import (
	"context"
	"io"
	"testing"

	"loan_report/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabled(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	shutdown, err := Init(context.Background(), config.Tracing{Enabled: false}, logger)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitUnsupportedProtocol(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	_, err := Init(context.Background(), config.Tracing{Enabled: true, Protocol: "udp", ServiceName: "loan-report"}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "udp")
}
