package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cripta/envelopesvc/internal/config"
	"github.com/cripta/envelopesvc/internal/keymanagement/transit"
)

// RunRotateTransitKey triggers Vault-side rotation of the transit key named
// in the given tenant's settings. This core never rotates the wrapping key itself during
// normal operation; operators call this out-of-band when the transit
// backend is in use.
func RunRotateTransitKey(ctx context.Context, logger *slog.Logger, settings config.TenantSettings) error {
	if settings.Backend != "transit" {
		return fmt.Errorf("tenant %q is not configured with the transit backend", settings.TenantID)
	}

	backend, err := transit.New(ctx, transit.Config{
		Address:     settings.Transit.Address,
		Token:       settings.Transit.Token,
		Namespace:   settings.Transit.Namespace,
		TransitPath: settings.Transit.TransitPath,
		KeyName:     settings.Transit.KeyName,
	})
	if err != nil {
		return fmt.Errorf("connecting to transit backend: %w", err)
	}

	if err := backend.Rotate(ctx); err != nil {
		return fmt.Errorf("rotating transit key: %w", err)
	}

	logger.Info("transit key rotated", slog.String("tenant_id", settings.TenantID), slog.String("key_name", settings.Transit.KeyName))
	return nil
}
