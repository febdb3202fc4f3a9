package registration

import (
	"regexp"
	"strings"
)

// StepResult carries the outcome of a step validation. Errors are keyed
// by field name and returned as data, never thrown; validators have no
// side effects and are safe to call repeatedly.
type StepResult struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern  = regexp.MustCompile(`^\+?[0-9 ]{6,15}$`)
	xrgiIDPattern = regexp.MustCompile(`^[0-9]{10}$`)
)

// ValidEmail reports whether the input looks like an email address.
func ValidEmail(value string) bool {
	return emailPattern.MatchString(strings.TrimSpace(value))
}

// ValidPhone reports whether the input looks like a phone number.
func ValidPhone(value string) bool {
	return phonePattern.MatchString(strings.TrimSpace(value))
}

// ValidXRGIID reports whether the input is exactly ten digits.
func ValidXRGIID(value string) bool {
	return xrgiIDPattern.MatchString(strings.TrimSpace(value))
}

func required(value string) bool {
	return strings.TrimSpace(value) != ""
}

// ValidateStep runs the validator for the session's current step.
func ValidateStep(s *Session) StepResult {
	if s == nil {
		return StepResult{Valid: false, Errors: map[string]string{"session": "missing session"}}
	}
	switch s.Flow {
	case FlowDirect:
		switch s.Step {
		case StepRegister:
			return ValidateSystemRegistration(s.Draft)
		case StepInstallation:
			return ValidateInstallation(s.Draft)
		}
	default:
		switch s.Step {
		case StepProfile:
			return ValidateProfile(s.Profile)
		case StepSystemRegistration:
			return ValidateSystemRegistration(s.Draft)
		case StepSmartPriceControl:
			return ValidateSmartPriceControl(s.Draft)
		}
	}
	return StepResult{Valid: true}
}

// ValidateForSubmit re-checks every content step of the flow before the
// final submission. A later edit can invalidate data whose step was
// already passed, so the current step alone is not enough.
func ValidateForSubmit(s *Session) StepResult {
	if s == nil {
		return StepResult{Valid: false, Errors: map[string]string{"session": "missing session"}}
	}
	errs := map[string]string{}
	merge := func(r StepResult) {
		for field, message := range r.Errors {
			errs[field] = message
		}
	}
	merge(ValidateSystemRegistration(s.Draft))
	if s.Flow == FlowDirect {
		merge(ValidateInstallation(s.Draft))
	} else {
		merge(ValidateSmartPriceControl(s.Draft))
	}
	return toResult(errs)
}

// ValidateProfile checks the customer profile step.
func ValidateProfile(p CustomerProfile) StepResult {
	errs := map[string]string{}
	if !required(p.FirstName) {
		errs["firstName"] = "first name is required"
	}
	if !required(p.LastName) {
		errs["lastName"] = "last name is required"
	}
	if !required(p.Email) {
		errs["email"] = "email is required"
	} else if !ValidEmail(p.Email) {
		errs["email"] = "enter a valid email address"
	}
	if !required(p.Phone) {
		errs["phone"] = "phone number is required"
	} else if !ValidPhone(p.Phone) {
		errs["phone"] = "enter a valid phone number"
	}
	if !required(p.Address) {
		errs["address"] = "address is required"
	}
	if !required(p.City) {
		errs["city"] = "city is required"
	}
	if !required(p.Country) {
		errs["country"] = "country is required"
	}
	return toResult(errs)
}

// ValidateSystemRegistration checks the facility identity, location,
// contract contacts and the energy-check sub-record.
func ValidateSystemRegistration(d FacilityDraft) StepResult {
	errs := map[string]string{}
	if !required(d.Name) {
		errs["name"] = "facility name is required"
	}
	if !required(d.XRGIID) {
		errs["xrgiIdNumber"] = "XRGI ID is required"
	} else if !ValidXRGIID(d.XRGIID) {
		errs["xrgiIdNumber"] = "XRGI ID must be exactly 10 digits"
	}
	if !required(d.ModelNumber) {
		errs["modelNumber"] = "model number is required"
	}
	if !required(d.Location.Address) {
		errs["location.address"] = "address is required"
	}
	if !required(d.Location.PostalCode) {
		errs["location.postalCode"] = "postal code is required"
	}
	if !required(d.Location.City) {
		errs["location.city"] = "city is required"
	}
	if !required(d.Location.Country) {
		errs["location.country"] = "country is required"
	}

	if d.HasServiceContract {
		validateContact(errs, "serviceProvider", d.ServiceProvider)
	}
	if (d.HasServiceContract || d.NeedServiceContract) && !d.IsSalesPartnerSame {
		validateContact(errs, "salesPartner", d.SalesPartner)
	}

	if d.HasEnergyCheckPlus {
		validateEnergyCheck(errs, d)
	}
	return toResult(errs)
}

// ValidateSmartPriceControl checks the controller step.
func ValidateSmartPriceControl(d FacilityDraft) StepResult {
	errs := map[string]string{}
	if d.InstalledSmartPriceController {
		if d.SmartPriceControl == nil || !required(d.SmartPriceControl.Method) {
			errs["smartPriceControl.method"] = "select an installation timing"
		} else if d.SmartPriceControl.Method != SmartPriceMethodASAP && d.SmartPriceControl.Method != SmartPriceMethodNextService {
			errs["smartPriceControl.method"] = "unknown installation timing"
		}
	}
	return toResult(errs)
}

// ValidateInstallation checks the direct-flow installation step.
func ValidateInstallation(d FacilityDraft) StepResult {
	errs := map[string]string{}
	if !d.IsInstalled {
		errs["isInstalled"] = "confirm the system is installed"
	}
	return toResult(errs)
}

func validateContact(errs map[string]string, prefix string, c *Contact) {
	if c == nil {
		errs[prefix+".name"] = "name is required"
		errs[prefix+".mailAddress"] = "email is required"
		errs[prefix+".phone"] = "phone number is required"
		return
	}
	if !required(c.Name) {
		errs[prefix+".name"] = "name is required"
	}
	if !required(c.MailAddress) {
		errs[prefix+".mailAddress"] = "email is required"
	} else if !ValidEmail(c.MailAddress) {
		errs[prefix+".mailAddress"] = "enter a valid email address"
	}
	if !required(c.Phone) {
		errs[prefix+".phone"] = "phone number is required"
	} else if !ValidPhone(c.Phone) {
		errs[prefix+".phone"] = "enter a valid phone number"
	}
}

func validateEnergyCheck(errs map[string]string, d FacilityDraft) {
	ec := d.EnergyCheck
	if ec == nil {
		errs["energyCheckPlus"] = "energy check details are required"
		return
	}
	if !required(ec.OperatingHours) {
		errs["energyCheckPlus.operatingHours"] = "operating hours are required"
	}
	if required(ec.Email) && !ValidEmail(ec.Email) {
		errs["energyCheckPlus.email"] = "enter a valid email address"
	}
	hours := d.OperatingHours()
	if !ec.Distribution.Valid(hours) {
		errs["energyCheckPlus.monthlyDistribution"] = "monthly percentages must total 100 and stay within 730 hours per month"
	}
}

func toResult(errs map[string]string) StepResult {
	if len(errs) == 0 {
		return StepResult{Valid: true}
	}
	return StepResult{Valid: false, Errors: errs}
}
