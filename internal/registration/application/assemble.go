package application

import (
	"fmt"
	"strings"

	"xrgi-portal/internal/ecpower"
	registration "xrgi-portal/internal/registration/domain"
)

// BuildPayload reshapes an accumulated draft into the backend's expected
// create/update body. Sub-records are included or dropped based on the
// toggle flags, never on whether the user once filled them in.
func BuildPayload(draft registration.FacilityDraft) ecpower.FacilityPayload {
	payload := ecpower.FacilityPayload{
		ID:                  draft.FacilityID,
		Name:                draft.Name,
		XRGIID:              draft.XRGIID,
		ModelNumber:         draft.ModelNumber,
		Location:            toLocation(draft.Location),
		HasServiceContract:  draft.HasServiceContract,
		NeedServiceContract: draft.NeedServiceContract,
		IsInstalled:         draft.IsInstalled,
		EnergyCheckPlus:     map[string]any{},
	}

	if draft.HasServiceContract {
		payload.ServiceProvider = toContact(draft.ServiceProvider)
	}
	if draft.HasServiceContract || draft.NeedServiceContract {
		payload.SalesPartner = toContact(draft.SalesPartner)
	}

	if draft.HasEnergyCheckPlus && draft.EnergyCheck != nil {
		payload.HasEnergyCheckPlus = true
		payload.EnergyCheckPlus = map[string]any{
			"annualSavings":       draft.EnergyCheck.AnnualSavings,
			"co2Savings":          draft.EnergyCheck.CO2Savings,
			"operatingHours":      draft.EnergyCheck.OperatingHours,
			"industry":            draft.EnergyCheck.Industry,
			"email":               draft.EnergyCheck.Email,
			"monthlyDistribution": monthlyHoursMap(draft.EnergyCheck.Distribution, draft.OperatingHours()),
		}
	}

	if draft.InstalledSmartPriceController {
		method := registration.SmartPriceMethodASAP
		if draft.SmartPriceControl != nil && draft.SmartPriceControl.Method != "" {
			method = draft.SmartPriceControl.Method
		}
		payload.SmartPriceControl = &ecpower.SmartPriceControl{Method: method}
		payload.SmartPriceControlAdded = true
	}

	return payload
}

// monthlyHoursMap converts the ordered month entries back into the
// lower-case-month-keyed map of hour strings the backend stores.
func monthlyHoursMap(dist registration.Distribution, operatingHours float64) map[string]string {
	hours := make(map[string]string, len(dist.Entries))
	for _, entry := range dist.Entries {
		value := entry.Percentage / 100 * operatingHours
		hours[strings.ToLower(entry.Month)] = fmt.Sprintf("%.2f", value)
	}
	return hours
}

func toLocation(loc registration.Location) ecpower.Location {
	return ecpower.Location{
		Address:    loc.Address,
		PostalCode: loc.PostalCode,
		City:       loc.City,
		Country:    loc.Country,
	}
}

func toContact(c *registration.Contact) *ecpower.Contact {
	if c == nil {
		return nil
	}
	return &ecpower.Contact{
		Name:                    c.Name,
		MailAddress:             c.MailAddress,
		Phone:                   c.Phone,
		CountryCode:             c.CountryCode,
		IsSameAsServiceProvider: c.IsSameAsServiceProvider,
	}
}

// toProfilePayload maps the session profile to the upstream body.
func toProfilePayload(p registration.CustomerProfile) ecpower.CustomerProfile {
	return ecpower.CustomerProfile{
		CustomerID:  p.CustomerID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Email:       p.Email,
		Phone:       p.Phone,
		CountryCode: p.CountryCode,
		CompanyName: p.CompanyName,
		Address:     p.Address,
		PostalCode:  p.PostalCode,
		City:        p.City,
		Country:     p.Country,
	}
}
