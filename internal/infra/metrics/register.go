package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

// MustRegister installs every collector this package declares into the
// default Prometheus registry. Calling it again is a no-op, so wiring code
// does not have to care whether another component registered first.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			verifyAttempts, verifyWorkflowSeconds, verifyPollLookups,
			ledgerDebits, ledgerCredits, ledgerRejected,
			governorCapacity, governorInFlight, governorRetunes,
		)
	})
}
