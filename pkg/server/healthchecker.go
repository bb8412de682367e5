package server

import "context"

type HealthChecker interface {
	Name() string
	Healthy(ctx context.Context) bool
}

type OkHealthChecker struct {
}

func NewOkHealthChecker() *OkHealthChecker {
	return &OkHealthChecker{}
}

func (hc *OkHealthChecker) Name() string {
	return "app"
}

func (hc *OkHealthChecker) Healthy(ctx context.Context) bool {
	return true
}

// Report runs every checker and tells whether all of them passed.
func Report(ctx context.Context, checkers ...HealthChecker) (map[string]bool, bool) {
	results := make(map[string]bool, len(checkers))
	ok := true
	for _, hc := range checkers {
		healthy := hc.Healthy(ctx)
		results[hc.Name()] = healthy
		ok = ok && healthy
	}
	return results, ok
}
