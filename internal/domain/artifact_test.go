package domain

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "mysite", "mysite"},
		{"spaces and punctuation", "My Site!", "my-site"},
		{"collapses runs", "My   --  Site", "my-site"},
		{"trims edges", "  !!portfolio!!  ", "portfolio"},
		{"keeps digits", "Site 2024", "site-2024"},
		{"nothing usable", "!!!", ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Slugify(tc.in); got != tc.want {
				t.Fatalf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestAccountEligible(t *testing.T) {
	base := Account{ID: "a", Credential: "tok", DeploymentsUsed: 1, MaxDeployments: 10, Active: true}
	if !base.Eligible() {
		t.Fatal("expected base account to be eligible")
	}

	inactive := base
	inactive.Active = false
	if inactive.Eligible() {
		t.Fatal("inactive account must not be eligible")
	}

	noToken := base
	noToken.Credential = "   "
	if noToken.Eligible() {
		t.Fatal("credential-less account must not be eligible")
	}

	atQuota := base
	atQuota.DeploymentsUsed = atQuota.MaxDeployments
	if atQuota.Eligible() {
		t.Fatal("account at quota must not be eligible")
	}
}

func TestMaskedCredential(t *testing.T) {
	account := Account{Credential: "rCV5qBASA6bU616KfY5u7bAF"}
	masked := account.MaskedCredential()
	if masked[len(masked)-4:] != "7bAF" {
		t.Fatalf("expected last four characters visible, got %q", masked)
	}
	for _, r := range masked[:len(masked)-4] {
		if r != '*' {
			t.Fatalf("expected leading characters masked, got %q", masked)
		}
	}

	short := Account{Credential: "abc"}
	if got := short.MaskedCredential(); got != "***" {
		t.Fatalf("short credential should be fully masked, got %q", got)
	}
}

func TestFailureReasonPermanence(t *testing.T) {
	permanent := []FailureReason{ReasonAuthRejected, ReasonSuspended, ReasonQuotaExceeded}
	for _, reason := range permanent {
		if !reason.Permanent() {
			t.Fatalf("expected %s to be permanent", reason)
		}
	}
	transient := []FailureReason{ReasonTimeout, ReasonTransient, ReasonBuildError, ReasonRejected}
	for _, reason := range transient {
		if reason.Permanent() {
			t.Fatalf("expected %s to be transient", reason)
		}
	}
}
