package checkout

// CreateSessionRequest is the body posted by the bot when a user picks a
// package. Optional fields override the catalog entry.
type CreateSessionRequest struct {
	UserID           int64  `json:"user_id" binding:"required"`
	PackageID        string `json:"package_id" binding:"required"`
	PriorityBoost    *int   `json:"priority_boost,omitempty"`
	Currency         string `json:"currency,omitempty"`
	AmountMinorUnits *int64 `json:"amount_minor_units,omitempty"`
}

type CreateSessionResponse struct {
	RedirectURL string `json:"redirect_url"`
}
