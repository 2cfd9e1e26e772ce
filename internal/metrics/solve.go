package metrics

import "time"

// SolveCompleted records a solve that returned a solution.
func SolveCompleted(kind string, duration time.Duration) {
	SolvesTotal.WithLabelValues(kind, "solved").Inc()
	SolveDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// SolveDenied records a solve refused by the entitlement check.
func SolveDenied(kind, reason string) {
	SolvesTotal.WithLabelValues(kind, "denied").Inc()
	EntitlementDenials.WithLabelValues(kind, reason).Inc()
}

// SolveFailed records a solve whose analysis failed.
func SolveFailed(kind string) {
	SolvesTotal.WithLabelValues(kind, "failed").Inc()
}

// SolveBusy records a solve rejected because another was in flight.
func SolveBusy(kind string) {
	SolvesTotal.WithLabelValues(kind, "busy").Inc()
}

// AICall records one call to an analysis provider.
func AICall(provider, status string) {
	AIAPICalls.WithLabelValues(provider, status).Inc()
}

// AITokens records token usage reported by a provider.
func AITokens(input, output int) {
	if input > 0 {
		AITokensTotal.WithLabelValues("input").Add(float64(input))
	}
	if output > 0 {
		AITokensTotal.WithLabelValues("output").Add(float64(output))
	}
}
