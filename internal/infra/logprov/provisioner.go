// internal/infra/logprov/provisioner.go
package logprov

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"aci-dispatcher/internal/domain"
)

// logProvisioner accepts every unit and only logs it. Used for local runs
// where no Azure subscription is available.
type logProvisioner struct {
	logger *slog.Logger
}

// NewProvisioner creates a Provisioner that writes each unit spec to logger.
func NewProvisioner(logger *slog.Logger) domain.Provisioner {
	return &logProvisioner{logger: logger.With("component", "log-provisioner")}
}

func (p *logProvisioner) CreateOrUpdate(ctx context.Context, resourceGroup, name string, spec domain.ComputeUnitSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal unit spec %s: %w", name, err)
	}
	p.logger.Info("would create container group", "resource_group", resourceGroup, "container_group", name, "spec", string(specJSON))
	return nil
}
