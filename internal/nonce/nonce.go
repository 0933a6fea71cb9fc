package nonce

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

func NewNonce(ens string) string {
	prefix := sha256.Sum256([]byte(ens))
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%x%s", prefix[:16], random)
}
