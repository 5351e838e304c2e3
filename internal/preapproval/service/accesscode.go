package service

import (
	"strings"

	"securevms/pkg/domain"
)

// AccessCode derives the human-readable code from the record id. Uniqueness
// only needs to hold among currently-active codes; the store rejects the
// rare collision and the caller retries with a fresh id.
func AccessCode(id domain.PreApprovalID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	return "PA-" + strings.ToUpper(hex[:8])
}

// QRPayload wraps an access code for QR rendering at the kiosk.
func QRPayload(accessCode string) string {
	return "QR_" + accessCode
}
