package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/textkey"
)

// EventID derives the stable identifier of a canonical event from its
// normalized title, start day and location. The country is part of the key
// because the store is partitioned by country.
func EventID(country, title string, start time.Time, location string) string {
	composite := fmt.Sprintf("%s|%s|%s|%s",
		textkey.Fold(country), textkey.Fold(title), start.Format("2006-01-02"), textkey.Fold(location))
	sum := sha256.Sum256([]byte(composite))
	return hex.EncodeToString(sum[:16])
}
