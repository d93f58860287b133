// Package selector implements the account selection policy: a pure
// function from a store snapshot to an ordered candidate list.
package selector

import (
	"errors"
	"sort"

	"github.com/IamSamk/Portfolify/internal/domain"
)

// ErrNoAccounts indicates no account passes the eligibility filter; no
// network call was attempted.
var ErrNoAccounts = errors.New("selector: no deployment accounts available")

// Candidates filters the snapshot down to eligible accounts and orders
// them least-used first, with configuration order breaking ties. The
// list is computed once per orchestration and iterated frozen, so a
// deployment in flight never re-ranks mid-call.
func Candidates(accounts []domain.Account) ([]domain.Account, error) {
	eligible := make([]domain.Account, 0, len(accounts))
	for _, account := range accounts {
		if account.Eligible() {
			eligible = append(eligible, account)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNoAccounts
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].DeploymentsUsed < eligible[j].DeploymentsUsed
	})
	return eligible, nil
}
