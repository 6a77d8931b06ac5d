// Package testing prepares the process environment for packages that import
// it in tests: binaries stay in test mode and required settings have
// harmless values.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var defaults = map[string]string{
	"ODYSSEY_TEST_MODE": "1",
	"LOG_FORMAT":        "text",
	"CSRF_SECRET":       "test-csrf-secret",
	"ACCESS_CACHE_TTL":  "1m",
}

var once sync.Once

func applyDefaults() {
	once.Do(func() {
		for key, value := range defaults {
			if _, set := os.LookupEnv(key); !set {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	applyDefaults()
}

func TestMain(m *stdtesting.M) {
	applyDefaults()
	os.Exit(m.Run())
}
