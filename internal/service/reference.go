package service

import (
    "crypto/rand"
    "fmt"
    "time"
)

// Booking references look like TH-2026-7KQ2ZR: a fixed prefix, the
// four-digit year of creation and six random uppercase alphanumeric
// characters.  They are presented to customers at the box office, so
// the alphabet stays free of lowercase and punctuation.
const (
    referencePrefix  = "TH"
    referenceCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
    referenceLength  = 6
)

// NewBookingReference generates a candidate booking reference.
// Uniqueness is enforced by the store's unique index; callers
// regenerate on collision.
func NewBookingReference(now time.Time) (string, error) {
    b := make([]byte, referenceLength)
    if _, err := rand.Read(b); err != nil {
        return "", err
    }
    for i := range b {
        b[i] = referenceCharset[int(b[i])%len(referenceCharset)]
    }
    return fmt.Sprintf("%s-%d-%s", referencePrefix, now.UTC().Year(), string(b)), nil
}
