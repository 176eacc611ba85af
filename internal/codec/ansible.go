package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"labprov/internal/domain"
)

// routerGroup is the inventory group every device is exported under
const routerGroup = "routers"

// AnsibleCodec handles Ansible inventory import/export
type AnsibleCodec struct{}

// NewAnsibleCodec creates a new Ansible codec
func NewAnsibleCodec() *AnsibleCodec {
	return &AnsibleCodec{}
}

// Format returns the codec format identifier
func (c *AnsibleCodec) Format() string {
	return "ansible-inventory"
}

// ansibleInventory represents the Ansible inventory structure
type ansibleInventory struct {
	All ansibleGroup `yaml:"all"`
}

type ansibleGroup struct {
	Children map[string]ansibleGroupDef `yaml:"children,omitempty"`
	Hosts    map[string]ansibleHost     `yaml:"hosts,omitempty"`
	Vars     map[string]interface{}     `yaml:"vars,omitempty"`
}

type ansibleGroupDef struct {
	Hosts map[string]ansibleHost `yaml:"hosts,omitempty"`
	Vars  map[string]interface{} `yaml:"vars,omitempty"`
}

type ansibleHost struct {
	AnsibleHost string                 `yaml:"ansible_host,omitempty"`
	Vars        map[string]interface{} `yaml:",inline"`
}

// Parse reads devices from an Ansible inventory. The host name becomes the
// hostname and ansible_host the management address.
func (c *AnsibleCodec) Parse(r io.Reader) ([]domain.Device, error) {
	var inv ansibleInventory
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&inv); err != nil {
		return nil, fmt.Errorf("failed to parse Ansible inventory: %w", err)
	}

	seen := make(map[string]bool)
	var devices []domain.Device

	add := func(name string, host ansibleHost) error {
		if seen[name] {
			return nil
		}
		seen[name] = true

		dev, err := hostToDevice(name, host)
		if err != nil {
			return err
		}
		devices = append(devices, dev)
		return nil
	}

	for _, group := range inv.All.Children {
		for name, host := range group.Hosts {
			if err := add(name, host); err != nil {
				return nil, err
			}
		}
	}
	for name, host := range inv.All.Hosts {
		if err := add(name, host); err != nil {
			return nil, err
		}
	}

	sortDevices(devices)
	return devices, nil
}

// hostToDevice converts an Ansible host to a domain.Device
func hostToDevice(name string, host ansibleHost) (domain.Device, error) {
	dev := domain.Device{
		Hostname:          name,
		ManagementAddress: host.AnsibleHost,
	}

	if lo, ok := host.Vars["loopback_address"].(string); ok {
		dev.LoopbackAddress = lo
	}

	switch v := host.Vars["infrastructure_interfaces"].(type) {
	case nil:
	case []interface{}:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return dev, fmt.Errorf("host %s: infrastructure_interfaces must be a list of strings", name)
			}
			dev.InfrastructureInterfaces = append(dev.InfrastructureInterfaces, s)
		}
	default:
		return dev, fmt.Errorf("host %s: infrastructure_interfaces must be a list", name)
	}

	return dev, nil
}

// Export writes devices as an Ansible inventory under the routers group
func (c *AnsibleCodec) Export(devices []domain.Device, w io.Writer) error {
	hosts := make(map[string]ansibleHost, len(devices))

	for _, dev := range devices {
		host := ansibleHost{
			AnsibleHost: dev.ManagementAddress,
			Vars:        make(map[string]interface{}),
		}

		if dev.HasLoopback() {
			host.Vars["loopback_address"] = dev.LoopbackAddress
			if isisNet, err := domain.ISISNet(dev.LoopbackAddress); err == nil {
				host.Vars["isis_net"] = isisNet
			}
		}
		if len(dev.InfrastructureInterfaces) > 0 {
			host.Vars["infrastructure_interfaces"] = dev.InfrastructureInterfaces
		}

		name := dev.Hostname
		if name == "" {
			name = dev.ManagementAddress
		}
		hosts[name] = host
	}

	inv := ansibleInventory{
		All: ansibleGroup{
			Children: map[string]ansibleGroupDef{
				routerGroup: {
					Hosts: hosts,
					Vars: map[string]interface{}{
						"ansible_network_os": "arista.eos.eos",
						"ansible_connection": "ansible.netcommon.httpapi",
					},
				},
			},
		},
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&inv); err != nil {
		return fmt.Errorf("failed to encode Ansible inventory: %w", err)
	}

	return nil
}
