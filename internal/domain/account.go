package domain

import "strings"

// Account represents one deployment-provider identity and its quota state.
type Account struct {
	ID              string
	Credential      string
	TeamID          string
	DeploymentsUsed int
	MaxDeployments  int
	Active          bool
	// RuntimeAdded marks accounts registered through the admin surface
	// rather than the environment; only these persist their credential.
	RuntimeAdded bool
}

// HasCredential reports whether the account carries a usable token.
func (a Account) HasCredential() bool {
	return strings.TrimSpace(a.Credential) != ""
}

// HasQuota reports whether the account still has deployment headroom.
func (a Account) HasQuota() bool {
	return a.DeploymentsUsed < a.MaxDeployments
}

// Eligible reports whether the account may be offered as a deployment candidate.
func (a Account) Eligible() bool {
	return a.Active && a.HasCredential() && a.HasQuota()
}

// MaskedCredential hides all but the last four characters of the token.
func (a Account) MaskedCredential() string {
	token := strings.TrimSpace(a.Credential)
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}

// Usage renders the used/max counter pair, e.g. "42/100".
func (a Account) Usage() string {
	return usageString(a.DeploymentsUsed, a.MaxDeployments)
}
