package icc_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/icc"
	"github.com/arloliu/icc/logger"
)

func TestNewRejectsNonIPv4Address(t *testing.T) {
	_, err := icc.New("not-an-ip")
	require.ErrorIs(t, err, icc.ErrInvalidServerAddress)
}

func TestNewAcceptsIPv4Address(t *testing.T) {
	client, err := icc.New("127.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, client)
	require.NoError(t, client.Close())
}

func TestWithPortRejectsOutOfRange(t *testing.T) {
	_, err := icc.New("127.0.0.1", icc.WithPort(0))
	require.Error(t, err)

	_, err = icc.New("127.0.0.1", icc.WithPort(70000))
	require.Error(t, err)
}

func TestWithLoggerRejectsNil(t *testing.T) {
	_, err := icc.New("127.0.0.1", icc.WithLogger(nil))
	require.Error(t, err)
}

// TestWithLoggerReceivesConnectionDiagnostics confirms the configured logger is the one actually
// invoked when a connect attempt fails, rather than some package-level default.
func TestWithLoggerReceivesConnectionDiagnostics(t *testing.T) {
	mockLogger := logger.NewMockLogger()
	mockLogger.On("Error", mock.Anything, mock.Anything).Return()
	mockLogger.On("Info", mock.Anything, mock.Anything).Return()
	mockLogger.On("Warn", mock.Anything, mock.Anything).Return()
	mockLogger.On("Debug", mock.Anything, mock.Anything).Return()

	client, err := icc.New("127.0.0.1", icc.WithPort(1), icc.WithLogger(mockLogger))
	require.NoError(t, err)
	defer client.Close()

	require.False(t, client.Connect(context.Background(), 0))
	mockLogger.AssertCalled(t, "Warn", mock.Anything, mock.Anything)
}

// TestWithCommFailureTimeoutsValidation covers §4.E's acceptance rule at construction time.
func TestWithCommFailureTimeoutsValidation(t *testing.T) {
	_, err := icc.New("127.0.0.1", icc.WithCommFailureTimeouts(0, time.Second))
	require.Error(t, err)

	_, err = icc.New("127.0.0.1", icc.WithCommFailureTimeouts(time.Second, time.Second))
	require.Error(t, err)

	_, err = icc.New("127.0.0.1", icc.WithCommFailureTimeouts(time.Second, 2*time.Second))
	require.NoError(t, err)
}

// TestSetCommFailureTimeoutsRejectsInvalidChangesAtRuntime covers the same rule applied by
// SetCommFailureTimeouts after construction: an invalid change is silently rejected and the
// prior values are kept.
func TestSetCommFailureTimeoutsRejectsInvalidChangesAtRuntime(t *testing.T) {
	client, err := icc.New("127.0.0.1")
	require.NoError(t, err)
	defer client.Close()

	require.True(t, client.SetCommFailureTimeouts(2*time.Second, 5*time.Second))
	require.False(t, client.SetCommFailureTimeouts(0, 5*time.Second))
	require.False(t, client.SetCommFailureTimeouts(3*time.Second, time.Second))
}
