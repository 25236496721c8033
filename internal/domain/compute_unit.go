// internal/domain/compute_unit.go
package domain

// Fixed resource and network contract for every spawned unit.
const (
	UnitOSType   = "Linux"
	UnitCPU      = 2.0
	UnitMemoryGB = 3.5
	UnitPort     = 80
	UnitProtocol = "TCP"

	EnvMessage       = "MESSAGE"
	EnvContainerName = "CONTAINER_NAME"
)

// EnvVar is a single environment variable injected into a unit.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Port is a port exposed by a unit.
type Port struct {
	Number   int32  `json:"number"`
	Protocol string `json:"protocol"`
}

// ComputeUnitSpec is the declarative description handed to a Provisioner.
type ComputeUnitSpec struct {
	Name     string   `json:"name"`
	Image    string   `json:"image"`
	Location string   `json:"location"`
	OSType   string   `json:"os_type"`
	CPU      float64  `json:"cpu"`
	MemoryGB float64  `json:"memory_gb"`
	Ports    []Port   `json:"ports"`
	PublicIP bool     `json:"public_ip"`
	Env      []EnvVar `json:"env"`
}

// NewComputeUnitSpec builds the spec for one unit of work. Only the name,
// image, location and work text vary; everything else is fixed.
func NewComputeUnitSpec(name, image, location, work string) ComputeUnitSpec {
	return ComputeUnitSpec{
		Name:     name,
		Image:    image,
		Location: location,
		OSType:   UnitOSType,
		CPU:      UnitCPU,
		MemoryGB: UnitMemoryGB,
		Ports:    []Port{{Number: UnitPort, Protocol: UnitProtocol}},
		PublicIP: true,
		Env: []EnvVar{
			{Name: EnvMessage, Value: work},
			{Name: EnvContainerName, Value: name},
		},
	}
}

// EnvValue returns the value of the named env var and whether it is set.
func (s ComputeUnitSpec) EnvValue(name string) (string, bool) {
	for _, e := range s.Env {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}
