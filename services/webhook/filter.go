package webhook

// Filter rejects events that belong to another deployment sharing the same
// webhook endpoint, distinguished by the tenant id embedded at checkout time.
type Filter struct {
	tenantID string
}

func NewFilter(tenantID string) *Filter {
	return &Filter{tenantID: tenantID}
}

// Allow reports whether the event belongs to this instance. Payloads without
// tenant metadata (e.g. payment_intent.payment_failed carries no session
// metadata) pass: the permissive default is intentional.
func (f *Filter) Allow(meta map[string]string) bool {
	tenant, ok := meta[MetaTenantID]
	if !ok || tenant == "" {
		return true
	}
	return tenant == f.tenantID
}
