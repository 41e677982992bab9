// internal/models/contractor.go
package models

import "time"

// VerificationStatus tracks the contractor's standing against the
// competent-person scheme registry.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
)

// ContractorProfile holds the identity and trust state of the contractor.
// Registering with a recognised registration-number prefix only ever yields
// "pending"; promotion to "verified" happens through the explicit
// verification-decision command, never at onboarding.
type ContractorProfile struct {
	Name                string             `json:"name"`
	RegistrationNumber  string             `json:"registrationNumber"`
	OnboardingCompleted bool               `json:"onboardingCompleted"`
	VerificationStatus  VerificationStatus `json:"verificationStatus"`
	IsVerified          bool               `json:"isVerified"`
	CredentialImageURL  string             `json:"credentialImageUrl,omitempty"`
	InsuranceExpiry     *time.Time         `json:"insuranceExpiry,omitempty"`
	ScaffoldCertRef     string             `json:"scaffoldCertRef,omitempty"`
}
