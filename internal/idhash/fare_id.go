package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"farewatch/internal/domain"
)

// ComputeFareID computes a deterministic fare_id using SHA256.
// Formula: SHA256(origin|destination|departure_date|return_date|airline|observed_at)
// Returns hex-encoded hash (64 characters).
func ComputeFareID(
	origin string,
	destination string,
	departureDate domain.Date,
	returnDate domain.Date,
	airline string,
	observedAt int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%d",
		origin,
		destination,
		string(departureDate),
		string(returnDate),
		airline,
		observedAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeCombinationID computes a deterministic combination_id from the two
// leg ids. Formula: SHA256(outbound_id|inbound_id), hex-encoded.
func ComputeCombinationID(outboundID, inboundID string) string {
	hash := sha256.Sum256([]byte(outboundID + "|" + inboundID))
	return hex.EncodeToString(hash[:])
}
