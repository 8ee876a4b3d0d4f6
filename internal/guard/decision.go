package guard

// Reason explains a denial.
type Reason struct {
	// Kind is a stable machine-readable category: "blacklisted",
	// "cloud_provider", "geo_restricted", "blocked_user_agent",
	// "rate_limit_exceeded", "banned", "suspicious_pattern" or
	// "storage_unavailable".
	Kind string `json:"kind"`

	// Detail is the human-readable explanation.
	Detail string `json:"detail"`
}

// Decision is the outcome of running the admission pipeline on one
// request. It is produced fresh per request and never persisted.
type Decision struct {
	Allowed bool    `json:"allowed"`
	Reason  *Reason `json:"reason,omitempty"`

	// Remaining is the rate-limit headroom after this request, or -1
	// when the rate limiter did not run. It may be negative while the
	// burst allowance is being consumed.
	Remaining int `json:"-"`
}

func deny(kind, detail string) Decision {
	return Decision{Allowed: false, Reason: &Reason{Kind: kind, Detail: detail}, Remaining: -1}
}
