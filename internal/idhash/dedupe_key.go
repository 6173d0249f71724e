package idhash

import (
	"crypto/sha256"
	"fmt"
	"math"

	"github.com/mr-tron/base58"

	"farewatch/internal/domain"
)

// dedupeKeyBytes is the hash prefix length kept for dedupe keys. 16 bytes is
// plenty for uniqueness and keeps the base58 form short enough for log lines
// and chat messages.
const dedupeKeyBytes = 16

// ComputeDedupeKey derives the alert dedupe identity from the route, the
// fare identity and the bucketed price. Two alerts for the same fare whose
// prices land in the same bucket share a key and are therefore suppressed
// within the retention window.
// Formula: base58(SHA256(route|fare_id|bucket)[:16]).
func ComputeDedupeKey(route domain.RouteKey, fareID string, price, bucketSize float64) string {
	if bucketSize <= 0 {
		bucketSize = 1
	}
	bucket := int64(math.Floor(price / bucketSize))

	data := fmt.Sprintf("%s|%s|%d", route.String(), fareID, bucket)
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:dedupeKeyBytes])
}
