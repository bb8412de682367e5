package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type downChecker struct{}

func (downChecker) Name() string                 { return "redis" }
func (downChecker) Healthy(context.Context) bool { return false }

func TestReport(t *testing.T) {
	results, ok := Report(context.Background(), NewOkHealthChecker())
	assert.True(t, ok)
	assert.Equal(t, map[string]bool{"app": true}, results)

	results, ok = Report(context.Background(), NewOkHealthChecker(), downChecker{})
	assert.False(t, ok)
	assert.False(t, results["redis"])
}
