package aci

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"aci-dispatcher/internal/domain"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerinstance/armcontainerinstance/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGroups struct {
	resourceGroup string
	name          string
	group         armcontainerinstance.ContainerGroup
	calls         int
	err           error
}

func (f *fakeGroups) BeginCreateOrUpdate(ctx context.Context, resourceGroupName string, containerGroupName string,
	containerGroup armcontainerinstance.ContainerGroup,
	options *armcontainerinstance.ContainerGroupsClientBeginCreateOrUpdateOptions,
) (*runtime.Poller[armcontainerinstance.ContainerGroupsClientCreateOrUpdateResponse], error) {
	f.calls++
	f.resourceGroup = resourceGroupName
	f.name = containerGroupName
	f.group = containerGroup
	return nil, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestToContainerGroup(t *testing.T) {
	spec := domain.NewComputeUnitSpec("a1b2c3d", "pskreter/worker-container:latest", "westus", "hello-world")

	group := ToContainerGroup(spec)

	require.NotNil(t, group.Location)
	assert.Equal(t, "westus", *group.Location)

	props := group.Properties
	require.NotNil(t, props)
	assert.Equal(t, armcontainerinstance.OperatingSystemTypesLinux, *props.OSType)

	require.NotNil(t, props.IPAddress)
	assert.Equal(t, armcontainerinstance.ContainerGroupIPAddressTypePublic, *props.IPAddress.Type)
	require.Len(t, props.IPAddress.Ports, 1)
	assert.Equal(t, int32(80), *props.IPAddress.Ports[0].Port)
	assert.Equal(t, armcontainerinstance.ContainerGroupNetworkProtocolTCP, *props.IPAddress.Ports[0].Protocol)

	require.Len(t, props.Containers, 1)
	c := props.Containers[0]
	assert.Equal(t, "a1b2c3d", *c.Name)
	assert.Equal(t, "pskreter/worker-container:latest", *c.Properties.Image)
	assert.Equal(t, 2.0, *c.Properties.Resources.Requests.CPU)
	assert.Equal(t, 3.5, *c.Properties.Resources.Requests.MemoryInGB)

	require.Len(t, c.Properties.Ports, 1)
	assert.Equal(t, int32(80), *c.Properties.Ports[0].Port)
	assert.Equal(t, armcontainerinstance.ContainerNetworkProtocolTCP, *c.Properties.Ports[0].Protocol)

	env := map[string]string{}
	for _, e := range c.Properties.EnvironmentVariables {
		env[*e.Name] = *e.Value
	}
	assert.Equal(t, map[string]string{"MESSAGE": "hello-world", "CONTAINER_NAME": "a1b2c3d"}, env)
}

func TestProvisioner_CreateOrUpdate(t *testing.T) {
	groups := &fakeGroups{}
	p := newProvisioner(groups, testLogger())
	spec := domain.NewComputeUnitSpec("zz99xx1", "img:1", "eastus", "work")

	err := p.CreateOrUpdate(context.Background(), "rg-1", "zz99xx1", spec)

	require.NoError(t, err)
	assert.Equal(t, 1, groups.calls)
	assert.Equal(t, "rg-1", groups.resourceGroup)
	assert.Equal(t, "zz99xx1", groups.name)
	assert.Equal(t, ToContainerGroup(spec), groups.group)
}

func TestProvisioner_CreateOrUpdateRejected(t *testing.T) {
	groups := &fakeGroups{err: errors.New("InvalidImage")}
	p := newProvisioner(groups, testLogger())

	err := p.CreateOrUpdate(context.Background(), "rg-1", "abc1234", domain.NewComputeUnitSpec("abc1234", "img", "eastus", "w"))

	require.Error(t, err)
	assert.ErrorIs(t, err, groups.err)
	assert.Contains(t, err.Error(), "abc1234")
	assert.Equal(t, 1, groups.calls)
}
