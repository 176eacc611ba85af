package domain

import "fmt"

// Credentials is a username/password pair used to open device sessions
type Credentials struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"-" yaml:"-"`
}

// IsZero reports whether no credentials are set
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == ""
}

// Device represents a managed router in the lab inventory
type Device struct {
	Hostname                 string      `json:"hostname" yaml:"hostname"`
	ManagementAddress        string      `json:"management_address" yaml:"management_address"`
	LoopbackAddress          string      `json:"loopback_address,omitempty" yaml:"loopback_address,omitempty"`
	Credentials              Credentials `json:"credentials" yaml:"credentials"`
	InfrastructureInterfaces []string    `json:"infrastructure_interfaces,omitempty" yaml:"infrastructure_interfaces,omitempty"`
}

// HasLoopback reports whether discovery has learned the loopback address
func (d Device) HasLoopback() bool {
	return d.LoopbackAddress != ""
}

// String identifies the device in logs and errors
func (d Device) String() string {
	if d.Hostname == "" {
		return d.ManagementAddress
	}
	return fmt.Sprintf("%s (%s)", d.Hostname, d.ManagementAddress)
}

// WithDefaultCredentials returns a copy carrying creds when the device has none
func (d Device) WithDefaultCredentials(creds Credentials) Device {
	if d.Credentials.IsZero() {
		d.Credentials = creds
	}
	return d
}

// Configuration is one rendered protocol document for one device
type Configuration struct {
	Device   Device
	Template string
	Text     string
}
