package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

// ensureTestMode keeps binaries from dialing real infrastructure and pins the
// payroll thresholds so tests do not inherit a developer's environment.
func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("SITEPAY_TEST_MODE", "1")
		for key, value := range map[string]string{
			"PAYROLL_REGULAR_HOURS":   "8",
			"PAYROLL_OVERTIME_HOURS":  "12",
			"PAYROLL_MAX_DAILY_HOURS": "24",
		} {
			_ = os.Setenv(key, value)
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
