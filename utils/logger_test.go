package utils

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetLogLevel(t *testing.T) {
	InitLogger()

	assert.NoError(t, SetLogLevel(""))
	assert.Equal(t, logrus.InfoLevel, InfoLogger.GetLevel())

	assert.NoError(t, SetLogLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, InfoLogger.GetLevel())
	assert.Equal(t, logrus.WarnLevel, ErrorLogger.GetLevel())

	assert.NoError(t, SetLogLevel("error"))
	assert.Equal(t, logrus.ErrorLevel, ErrorLogger.GetLevel())

	assert.Error(t, SetLogLevel("loud"))
}
