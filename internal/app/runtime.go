package app

import (
	"os"
	"strconv"
	"sync"
)

// testModeEnv stops binaries before they open listeners or connections.
const testModeEnv = "ODYSSEY_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	on, _ := strconv.ParseBool(os.Getenv(testModeEnv))
	return on
})

// InTestMode reports whether cmd binaries should exit without starting.
func InTestMode() bool {
	return testMode()
}
