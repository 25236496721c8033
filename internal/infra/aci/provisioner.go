// internal/infra/aci/provisioner.go
package aci

import (
	"context"
	"fmt"
	"log/slog"

	"aci-dispatcher/internal/domain"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerinstance/armcontainerinstance/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// containerGroupsAPI is the subset of armcontainerinstance.ContainerGroupsClient we call.
type containerGroupsAPI interface {
	BeginCreateOrUpdate(ctx context.Context, resourceGroupName string, containerGroupName string,
		containerGroup armcontainerinstance.ContainerGroup,
		options *armcontainerinstance.ContainerGroupsClientBeginCreateOrUpdateOptions,
	) (*runtime.Poller[armcontainerinstance.ContainerGroupsClientCreateOrUpdateResponse], error)
}

type aciProvisioner struct {
	groups containerGroupsAPI
	logger *slog.Logger
	tracer trace.Tracer
}

// NewProvisioner creates a Provisioner backed by Azure Container Instances.
func NewProvisioner(subscriptionID string, cred azcore.TokenCredential, logger *slog.Logger) (domain.Provisioner, error) {
	client, err := armcontainerinstance.NewContainerGroupsClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create container groups client: %w", err)
	}
	return newProvisioner(client, logger), nil
}

func newProvisioner(groups containerGroupsAPI, logger *slog.Logger) *aciProvisioner {
	return &aciProvisioner{
		groups: groups,
		logger: logger.With("component", "aci-provisioner"),
		tracer: otel.Tracer("aci-dispatcher-provisioner"),
	}
}

// CreateOrUpdate submits the container group and returns once Azure has
// accepted the request. The long-running operation is not polled.
func (p *aciProvisioner) CreateOrUpdate(ctx context.Context, resourceGroup, name string, spec domain.ComputeUnitSpec) error {
	ctx, span := p.tracer.Start(ctx, "provisioner.aci.CreateOrUpdate",
		trace.WithAttributes(
			attribute.String("aci.resource_group", resourceGroup),
			attribute.String("aci.container_group", name),
			attribute.String("aci.location", spec.Location),
		))
	defer span.End()

	if _, err := p.groups.BeginCreateOrUpdate(ctx, resourceGroup, name, ToContainerGroup(spec), nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create or update rejected")
		return fmt.Errorf("failed to create container group %s in %s: %w", name, resourceGroup, err)
	}

	p.logger.Debug("container group accepted", "container_group", name, "resource_group", resourceGroup)
	return nil
}

// ToContainerGroup converts a domain.ComputeUnitSpec into a single-container
// group exposing the spec's ports on a public IP.
func ToContainerGroup(spec domain.ComputeUnitSpec) armcontainerinstance.ContainerGroup {
	containerPorts := make([]*armcontainerinstance.ContainerPort, 0, len(spec.Ports))
	groupPorts := make([]*armcontainerinstance.Port, 0, len(spec.Ports))
	for _, p := range spec.Ports {
		containerPorts = append(containerPorts, &armcontainerinstance.ContainerPort{
			Port:     to.Ptr(p.Number),
			Protocol: to.Ptr(armcontainerinstance.ContainerNetworkProtocol(p.Protocol)),
		})
		groupPorts = append(groupPorts, &armcontainerinstance.Port{
			Port:     to.Ptr(p.Number),
			Protocol: to.Ptr(armcontainerinstance.ContainerGroupNetworkProtocol(p.Protocol)),
		})
	}

	env := make([]*armcontainerinstance.EnvironmentVariable, 0, len(spec.Env))
	for _, e := range spec.Env {
		env = append(env, &armcontainerinstance.EnvironmentVariable{
			Name:  to.Ptr(e.Name),
			Value: to.Ptr(e.Value),
		})
	}

	group := armcontainerinstance.ContainerGroup{
		Location: to.Ptr(spec.Location),
		Properties: &armcontainerinstance.ContainerGroupPropertiesProperties{
			OSType: to.Ptr(armcontainerinstance.OperatingSystemTypes(spec.OSType)),
			Containers: []*armcontainerinstance.Container{{
				Name: to.Ptr(spec.Name),
				Properties: &armcontainerinstance.ContainerProperties{
					Image: to.Ptr(spec.Image),
					Resources: &armcontainerinstance.ResourceRequirements{
						Requests: &armcontainerinstance.ResourceRequests{
							CPU:        to.Ptr(spec.CPU),
							MemoryInGB: to.Ptr(spec.MemoryGB),
						},
					},
					Ports:                containerPorts,
					EnvironmentVariables: env,
				},
			}},
		},
	}

	if spec.PublicIP {
		group.Properties.IPAddress = &armcontainerinstance.IPAddress{
			Type:  to.Ptr(armcontainerinstance.ContainerGroupIPAddressTypePublic),
			Ports: groupPorts,
		}
	}
	return group
}
