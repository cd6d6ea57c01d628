package types

// ProviderKind names the Instance Provider implementation a ResourcePool
// delegates worker provisioning to.
type ProviderKind string

const (
	ProviderContainer ProviderKind = "container" // containerd-backed
	ProviderVM        ProviderKind = "vm"        // lima-backed virtual machine
)

// Template names a provisionable worker shape: an image/VM reference paired
// with the default resources a worker instantiated from it offers.
type Template struct {
	Name        string            `json:"name"`
	Provider    ProviderKind      `json:"provider"`
	Image       string            `json:"image"`
	CPUMillis   int64             `json:"cpuMillis"`
	MemoryBytes int64             `json:"memoryBytes"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// ResourcePool groups Workers that can be provisioned via a common Instance
// Provider and template.
type ResourcePool struct {
	Name             string            `json:"name"`
	Provider         ProviderKind      `json:"provider"`
	Template         Template          `json:"template"`
	MinWorkers       int               `json:"minWorkers"`
	MaxWorkers       int               `json:"maxWorkers"`
	EphemeralWorkers bool              `json:"ephemeralWorkers"`
	IdleTimeout      int64             `json:"idleTimeoutSeconds"`
	Labels           map[string]string `json:"labels,omitempty"`
}
