package catalog

import "github.com/dhis2-sre/mq-manager/pkg/model"

// swagger:model
// A list of flavors
type Flavors struct {
	// The flavors sorted by RAM, VCPUs and ID
	// in: body
	Body []model.Flavor
}

// swagger:model
// A flavor
type Flavor struct {
	// in: body
	Body model.Flavor
}

// swagger:model
// A list of networks
type Networks struct {
	// The networks sorted by name and ID
	// in: body
	Body []model.Network
}

// swagger:parameters findFlavorById
type _ struct {
	// in: path
	// required: true
	ID string `json:"id"`
}
