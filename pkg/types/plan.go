package types

// PlanPrice is one configured price point for a paid tier and billing cycle.
type PlanPrice struct {
	Tier  Tier         `json:"tier" mapstructure:"tier"`
	Cycle BillingCycle `json:"cycle" mapstructure:"cycle"`
	// Amount is in minor currency units.
	Amount   int64  `json:"amount" mapstructure:"amount"`
	Currency string `json:"currency" mapstructure:"currency"`
}
