// Package testing starts throwaway backing services for integration tests.
package testing

import (
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// terminateOnCleanup stops c when tb finishes.
func terminateOnCleanup(tb testing.TB, name string, c testcontainers.Container) {
	tb.Cleanup(func() {
		if err := testcontainers.TerminateContainer(c); err != nil {
			tb.Logf("failed to terminate %s container: %v", name, err)
		}
	})
}
