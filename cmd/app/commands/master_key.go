package commands

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cripta/envelopesvc/internal/envelope/domain"
)

// RunCreateMasterKey generates a cryptographically secure master key for the
// localmaster KeyManagement backend. Key material is zeroed from memory
// after encoding. If keyID is empty, a default ID in the format
// "master-key-YYYY-MM-DD" is generated.
//
// Output format:
//
//	MASTER_KEYS="<keyID>:<base64-encoded-key>"
//	MASTER_KEY_ACTIVE_ID="<keyID>"
func RunCreateMasterKey(logger *slog.Logger, writer io.Writer, keyID string) error {
	if keyID == "" {
		keyID = fmt.Sprintf("master-key-%s", time.Now().Format("2006-01-02"))
	}

	key := make([]byte, domain.KeyLen)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("failed to generate master key: %w", err)
	}
	defer func() {
		for i := range key {
			key[i] = 0
		}
	}()

	encodedKey := base64.StdEncoding.EncodeToString(key)

	logger.Info("generated new master key", slog.String("key_id", keyID))

	_, _ = fmt.Fprintln(writer, "# Master Key Configuration")
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintf(writer, "MASTER_KEYS=\"%s:%s\"\n", keyID, encodedKey)
	_, _ = fmt.Fprintf(writer, "MASTER_KEY_ACTIVE_ID=\"%s\"\n", keyID)
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintln(writer, "# For multiple master keys (key rotation), use comma-separated format:")
	_, _ = fmt.Fprintf(writer, "# MASTER_KEYS=\"%s:%s,new-key:base64-encoded-new-key\"\n", keyID, encodedKey)
	_, _ = fmt.Fprintln(writer, "# MASTER_KEY_ACTIVE_ID=\"new-key\"")

	return nil
}
