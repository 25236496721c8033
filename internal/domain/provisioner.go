// internal/domain/provisioner.go
package domain

import "context"

// Target identifies where compute units are provisioned.
type Target struct {
	ResourceGroup string
	Location      string
}

// Provisioner creates or updates a running compute unit matching a spec.
// CreateOrUpdate returns once the request has been accepted or rejected;
// it does not wait for the unit to finish starting.
type Provisioner interface {
	CreateOrUpdate(ctx context.Context, resourceGroup, name string, spec ComputeUnitSpec) error
}

// NameGenerator produces identifiers for spawned units.
type NameGenerator interface {
	Generate() string
}
