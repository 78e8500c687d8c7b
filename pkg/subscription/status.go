package subscription

import "time"

// TierEnterprise is the tier granted to administrative identities.
const TierEnterprise = "Enterprise"

// AdminPeriodEnd is the far-future renewal date of synthesized admin
// subscriptions.
var AdminPeriodEnd = time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)

// Status is the entitlement of one identity as last observed from the
// payment provider.
type Status struct {
	Subscribed bool       `json:"subscribed"`
	Tier       *string    `json:"subscription_tier,omitempty"`
	PeriodEnd  *time.Time `json:"subscription_end,omitempty"`
}

// AdminStatus is the synthesized status of administrative identities.
func AdminStatus() Status {
	tier := TierEnterprise
	end := AdminPeriodEnd
	return Status{Subscribed: true, Tier: &tier, PeriodEnd: &end}
}

// TierName returns the tier or an empty string.
func (s Status) TierName() string {
	if s.Tier == nil {
		return ""
	}
	return *s.Tier
}
