// Package emailaddr provides email address utilities used across the sync
// engine: normalization, syntax validation, domain extraction and freemail
// (consumer mailbox provider) detection.
// This is part of the platform layer and contains no business logic.
package emailaddr

import (
	"net/mail"
	"strings"
)

// freemailDomains lists consumer mailbox providers. A lead at one of these
// domains has no meaningful company domain, so organization creation in the
// CRM is skipped for them.
var freemailDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"yahoo.com":      true,
	"yahoo.co.uk":    true,
	"ymail.com":      true,
	"hotmail.com":    true,
	"hotmail.co.uk":  true,
	"outlook.com":    true,
	"live.com":       true,
	"msn.com":        true,
	"aol.com":        true,
	"icloud.com":     true,
	"me.com":         true,
	"mac.com":        true,
	"protonmail.com": true,
	"proton.me":      true,
	"gmx.com":        true,
	"gmx.net":        true,
	"mail.com":       true,
	"zoho.com":       true,
	"fastmail.com":   true,
	"hey.com":        true,
}

// Normalize lowercases and trims an email address. It does not validate.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValid reports whether the address parses as a bare RFC 5322 address
// and contains a domain with at least one dot.
func IsValid(email string) bool {
	normalized := Normalize(email)
	if normalized == "" {
		return false
	}

	parsed, err := mail.ParseAddress(normalized)
	if err != nil || parsed.Address != normalized {
		return false
	}

	domain := Domain(normalized)
	return strings.Contains(domain, ".")
}

// Domain returns the part after the last "@", lowercased. Empty when the
// input has no "@".
func Domain(email string) string {
	normalized := Normalize(email)
	at := strings.LastIndex(normalized, "@")
	if at < 0 || at == len(normalized)-1 {
		return ""
	}
	return normalized[at+1:]
}

// IsFreemail reports whether the address belongs to a consumer mailbox provider.
func IsFreemail(email string) bool {
	return freemailDomains[Domain(email)]
}
