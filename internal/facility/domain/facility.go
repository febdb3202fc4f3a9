package facility

import (
	"time"
)

// Known facility statuses as the backend reports them.
const (
	StatusOperational = "operational"
	StatusWarning     = "warning"
	StatusFault       = "fault"
	StatusOffline     = "offline"
)

// Facility is the portal's view of a registered XRGI facility.
type Facility struct {
	ID                     string    `json:"id"`
	Name                   string    `json:"name"`
	XRGIID                 string    `json:"xrgiId"`
	ModelNumber            string    `json:"modelNumber"`
	Status                 string    `json:"status"`
	Address                string    `json:"address"`
	PostalCode             string    `json:"postalCode"`
	City                   string    `json:"city"`
	Country                string    `json:"country"`
	IsInstalled            bool      `json:"isInstalled"`
	HasServiceContract     bool      `json:"hasServiceContract"`
	NeedServiceContract    bool      `json:"needServiceContract"`
	HasEnergyCheckPlus     bool      `json:"hasEnergyCheckPlus"`
	SmartPriceControlAdded bool      `json:"smartPriceControlAdded"`
	ServiceProviderName    string    `json:"serviceProviderName,omitempty"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// Dashboard summarizes a user's fleet.
type Dashboard struct {
	Total           int                   `json:"total"`
	ByStatus        map[string]int        `json:"byStatus"`
	Groups          map[string][]Facility `json:"groups"`
	ServiceContract ContractSummary       `json:"serviceContract"`
	Pending         []Facility            `json:"pending"`
}

// ContractSummary counts facilities per service-contract state.
type ContractSummary struct {
	Covered   int `json:"covered"`
	Requested int `json:"requested"`
	Uncovered int `json:"uncovered"`
}

// BuildDashboard groups facilities by status and tallies contract state.
// Facilities that are registered but not yet installed land in Pending.
func BuildDashboard(facilities []Facility) Dashboard {
	dashboard := Dashboard{
		Total:    len(facilities),
		ByStatus: make(map[string]int),
		Groups:   make(map[string][]Facility),
	}
	for _, f := range facilities {
		status := f.Status
		if status == "" {
			status = StatusOffline
		}
		dashboard.ByStatus[status]++
		dashboard.Groups[status] = append(dashboard.Groups[status], f)

		switch {
		case f.HasServiceContract:
			dashboard.ServiceContract.Covered++
		case f.NeedServiceContract:
			dashboard.ServiceContract.Requested++
		default:
			dashboard.ServiceContract.Uncovered++
		}

		if !f.IsInstalled {
			dashboard.Pending = append(dashboard.Pending, f)
		}
	}
	return dashboard
}
