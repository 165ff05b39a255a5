package clicolor

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLine_KnownLevelIsColored(t *testing.T) {
	result := Line("executor", "ERROR", "task failed")
	assert.Contains(t, result, ansiBold+ansiRed)
	assert.Contains(t, result, "task failed")
	assert.True(t, strings.HasSuffix(result, ansiReset+": task failed"))
}

func TestLine_UnknownLevelIsDimmed(t *testing.T) {
	result := Line("executor", "TRACE", "verbose detail")
	assert.Contains(t, result, ansiDim)
	assert.Contains(t, result, "verbose detail")
}

func TestWrite_AppendsNewline(t *testing.T) {
	var buf bytes.Buffer
	Write(&buf, "queue", "INFO", "task enqueued")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "task enqueued")
}

func TestSuccessAndFailure_AreDistinctColors(t *testing.T) {
	assert.Contains(t, Success("done"), ansiGreen)
	assert.Contains(t, Failure("boom"), ansiRed)
}
