package utils

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

func GenerateNanoIdWithPrefix(prefix string, length int) string {
	alphabet := "abcdefghijklmnopqrstuvwxyz0123456789"
	id, err := gonanoid.Generate(alphabet, length)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%s_%s", prefix, id)
}

// DeriveMessageID builds a deterministic identifier for messages that carry no
// Message-ID header, so reprocessing the same message still deduplicates.
func DeriveMessageID(sender, subject string, receivedAt time.Time) string {
	seed := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(sender)),
		NormalizeEmailSubject(subject),
		receivedAt.UTC().Format(time.RFC3339),
	}, "|")
	hash := sha256.Sum256([]byte(seed))
	return fmt.Sprintf("derived.%x", hash[:16])
}
