package model

// Flavor is a compute sizing tier offered by the compute provider.
// swagger:model Flavor
type Flavor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// RAM in MiB
	RAM   int `json:"ram"`
	VCPUs int `json:"vcpus"`
	// Disk in GiB
	Disk int `json:"disk"`
}

// Network is a network visible to a project.
// swagger:model Network
type Network struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Shared bool   `json:"shared"`
}
