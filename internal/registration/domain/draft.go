package registration

import (
	"strconv"
	"strings"
	"time"
)

// Smart price controller installation timing options.
const (
	SmartPriceMethodASAP        = "as_soon_as_possible"
	SmartPriceMethodNextService = "on_next_service"
)

// Location is the facility address.
type Location struct {
	Address    string `json:"address"`
	PostalCode string `json:"postalCode"`
	City       string `json:"city"`
	Country    string `json:"country"`
}

// Contact holds a service provider or sales partner contact.
type Contact struct {
	Name                    string `json:"name"`
	MailAddress             string `json:"mailAddress"`
	Phone                   string `json:"phone"`
	CountryCode             string `json:"countryCode"`
	IsSameAsServiceProvider bool   `json:"isSameAsServiceProvider,omitempty"`
}

// EnergyCheckPlus holds the energy-check subscription sub-record.
type EnergyCheckPlus struct {
	AnnualSavings  string       `json:"annualSavings"`
	CO2Savings     string       `json:"co2Savings"`
	OperatingHours string       `json:"operatingHours"`
	Industry       string       `json:"industry"`
	Email          string       `json:"email"`
	Distribution   Distribution `json:"monthlyDistribution"`
}

// SmartPriceControl holds the smart price controller sub-record.
type SmartPriceControl struct {
	Method string `json:"method"`
}

// FacilityDraft is the in-progress registration record. SetField and the
// named transitions return a modified copy; callers never mutate a draft
// they did not produce.
type FacilityDraft struct {
	FacilityID  string   `json:"facilityId,omitempty"`
	Name        string   `json:"name"`
	XRGIID      string   `json:"xrgiID"`
	ModelNumber string   `json:"modelNumber"`
	Location    Location `json:"location"`
	Status      string   `json:"status,omitempty"`

	HasServiceContract            bool   `json:"hasServiceContract"`
	NeedServiceContract           bool   `json:"needServiceContract"`
	NeedServiceContractChoice     string `json:"needServiceContractChoice,omitempty"`
	IsSalesPartnerSame            bool   `json:"isSalesPartnerSame"`
	HasEnergyCheckPlus            bool   `json:"hasEnergyCheckPlus"`
	InstalledSmartPriceController bool   `json:"installedSmartPriceController"`
	SmartPriceControlAdded        bool   `json:"smartPriceControlAdded"`
	IsInstalled                   bool   `json:"isInstalled"`
	DistributeHoursEvenly         bool   `json:"distributeHoursEvenly"`

	ServiceProvider   *Contact           `json:"serviceProvider,omitempty"`
	SalesPartner      *Contact           `json:"salesPartner,omitempty"`
	EnergyCheck       *EnergyCheckPlus   `json:"energyCheckPlus,omitempty"`
	SmartPriceControl *SmartPriceControl `json:"smartPriceControl,omitempty"`

	Errors map[string]string `json:"errors,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewFacilityDraft returns an empty draft.
func NewFacilityDraft(now time.Time) FacilityDraft {
	return FacilityDraft{CreatedAt: now.UTC(), UpdatedAt: now.UTC()}
}

// Clone returns a deep copy of the draft.
func (d FacilityDraft) Clone() FacilityDraft {
	copied := d
	if d.ServiceProvider != nil {
		sp := *d.ServiceProvider
		copied.ServiceProvider = &sp
	}
	if d.SalesPartner != nil {
		sp := *d.SalesPartner
		copied.SalesPartner = &sp
	}
	if d.EnergyCheck != nil {
		ec := *d.EnergyCheck
		copied.EnergyCheck = &ec
	}
	if d.SmartPriceControl != nil {
		spc := *d.SmartPriceControl
		copied.SmartPriceControl = &spc
	}
	if d.Errors != nil {
		errs := make(map[string]string, len(d.Errors))
		for k, v := range d.Errors {
			errs[k] = v
		}
		copied.Errors = errs
	}
	return copied
}

// OperatingHours parses the energy-check operating hours, treating
// missing or malformed input as zero.
func (d FacilityDraft) OperatingHours() float64 {
	if d.EnergyCheck == nil {
		return 0
	}
	hours, err := strconv.ParseFloat(strings.TrimSpace(d.EnergyCheck.OperatingHours), 64)
	if err != nil || hours < 0 {
		return 0
	}
	return hours
}

// SetField applies a value at a simple or dot-separated path and returns
// the updated draft. Toggle fields route through their named transitions
// so the dependent-field cascades stay in one place. A recorded validation
// error for the field is cleared on any update.
func (d FacilityDraft) SetField(path string, value any) (FacilityDraft, error) {
	draft := d.Clone()
	head, rest, _ := strings.Cut(path, ".")

	var err error
	switch head {
	case "name":
		draft.Name = asString(value)
	case "xrgiID":
		draft.XRGIID = asString(value)
	case "modelNumber":
		draft.ModelNumber = asString(value)
	case "status":
		draft.Status = asString(value)
	case "isInstalled":
		draft.IsInstalled = asBool(value)
	case "needServiceContract":
		draft.NeedServiceContract = asBool(value)
	case "needServiceContractChoice":
		draft.NeedServiceContractChoice = asString(value)
	case "hasServiceContract":
		if asBool(value) {
			draft = draft.EnableServiceContract()
		} else {
			draft = draft.DisableServiceContract()
		}
	case "EnergyCheck_plus", "hasEnergyCheckPlus":
		if asBool(value) {
			draft = draft.EnableEnergyCheckPlus()
		} else {
			draft = draft.DisableEnergyCheckPlus()
		}
	case "installedSmartPriceController":
		if asBool(value) {
			draft = draft.EnableSmartPriceControl()
		} else {
			draft = draft.DisableSmartPriceControl()
		}
	case "isSalesPartnerSame":
		draft = draft.SetSalesPartnerSame(asBool(value))
	case "distributeHoursEvenly":
		draft = draft.SetDistributeEvenly(asBool(value))
	case "location":
		err = setLocationField(&draft.Location, rest, value)
	case "serviceProvider":
		if draft.ServiceProvider == nil {
			draft.ServiceProvider = &Contact{}
		}
		err = setContactField(draft.ServiceProvider, rest, value)
	case "salesPartner":
		if draft.SalesPartner == nil {
			draft.SalesPartner = &Contact{}
		}
		err = setContactField(draft.SalesPartner, rest, value)
	case "energyCheckPlus":
		err = draft.setEnergyCheckField(rest, value)
	case "smartPriceControl":
		if rest != "method" {
			err = ErrUnknownField
			break
		}
		if draft.SmartPriceControl == nil {
			draft.SmartPriceControl = &SmartPriceControl{}
		}
		draft.SmartPriceControl.Method = asString(value)
	default:
		err = ErrUnknownField
	}
	if err != nil {
		return d, err
	}

	draft.clearError(path)
	if rest != "" {
		draft.clearError(rest)
	}
	draft.UpdatedAt = time.Now().UTC()
	return draft, nil
}

// EnableServiceContract turns the service contract on. An active contract
// supersedes a pending request, so the request choice is dropped.
func (d FacilityDraft) EnableServiceContract() FacilityDraft {
	d.HasServiceContract = true
	d.NeedServiceContract = false
	d.NeedServiceContractChoice = ""
	if d.ServiceProvider == nil {
		d.ServiceProvider = &Contact{}
	}
	return d
}

// DisableServiceContract turns the service contract off and drops the
// provider details plus any validation errors recorded for them.
func (d FacilityDraft) DisableServiceContract() FacilityDraft {
	d.HasServiceContract = false
	d.ServiceProvider = nil
	d.clearErrorPrefix("serviceProvider")
	if d.IsSalesPartnerSame {
		d.IsSalesPartnerSame = false
		d.SalesPartner = nil
		d.clearErrorPrefix("salesPartner")
	}
	return d
}

// EnableEnergyCheckPlus initialises the energy-check sub-record with empty
// fields and a zeroed twelve-month distribution.
func (d FacilityDraft) EnableEnergyCheckPlus() FacilityDraft {
	d.HasEnergyCheckPlus = true
	d.EnergyCheck = &EnergyCheckPlus{Distribution: ZeroDistribution()}
	return d
}

// DisableEnergyCheckPlus clears the sub-record and its flag.
func (d FacilityDraft) DisableEnergyCheckPlus() FacilityDraft {
	d.HasEnergyCheckPlus = false
	d.EnergyCheck = nil
	d.DistributeHoursEvenly = false
	d.clearErrorPrefix("energyCheckPlus")
	return d
}

// EnableSmartPriceControl initialises the controller record with the
// default installation timing.
func (d FacilityDraft) EnableSmartPriceControl() FacilityDraft {
	d.InstalledSmartPriceController = true
	d.SmartPriceControlAdded = true
	d.SmartPriceControl = &SmartPriceControl{Method: SmartPriceMethodASAP}
	return d
}

// DisableSmartPriceControl clears the controller record and both flags.
func (d FacilityDraft) DisableSmartPriceControl() FacilityDraft {
	d.InstalledSmartPriceController = false
	d.SmartPriceControlAdded = false
	d.SmartPriceControl = nil
	return d
}

// SetSalesPartnerSame copies the service provider into the sales partner
// when true, or resets the sales partner when false.
func (d FacilityDraft) SetSalesPartnerSame(same bool) FacilityDraft {
	d.IsSalesPartnerSame = same
	if same {
		partner := Contact{IsSameAsServiceProvider: true}
		if d.ServiceProvider != nil {
			partner = *d.ServiceProvider
			partner.IsSameAsServiceProvider = true
		}
		d.SalesPartner = &partner
		d.clearErrorPrefix("salesPartner")
		return d
	}
	d.SalesPartner = &Contact{}
	return d
}

// SetDistributeEvenly switches between the even split and manual entry.
func (d FacilityDraft) SetDistributeEvenly(evenly bool) FacilityDraft {
	d.DistributeHoursEvenly = evenly
	if d.EnergyCheck == nil {
		return d
	}
	if evenly {
		d.EnergyCheck.Distribution = d.EnergyCheck.Distribution.SetEven(d.OperatingHours())
	} else {
		dist := ZeroDistribution()
		d.EnergyCheck.Distribution = dist
	}
	return d
}

// UpdateMonthPercentage applies manual percentage input for one month.
func (d FacilityDraft) UpdateMonthPercentage(month int, raw string) (FacilityDraft, error) {
	draft := d.Clone()
	if draft.EnergyCheck == nil {
		return d, ErrUnknownField
	}
	dist, err := draft.EnergyCheck.Distribution.UpdatePercentage(month, raw, draft.OperatingHours())
	if err != nil {
		return d, err
	}
	draft.EnergyCheck.Distribution = dist
	draft.DistributeHoursEvenly = false
	draft.UpdatedAt = time.Now().UTC()
	return draft, nil
}

func (d *FacilityDraft) setEnergyCheckField(field string, value any) error {
	if d.EnergyCheck == nil {
		d.EnergyCheck = &EnergyCheckPlus{Distribution: ZeroDistribution()}
	}
	switch field {
	case "annualSavings":
		d.EnergyCheck.AnnualSavings = asString(value)
	case "co2Savings":
		d.EnergyCheck.CO2Savings = asString(value)
	case "industry":
		d.EnergyCheck.Industry = asString(value)
	case "email":
		d.EnergyCheck.Email = asString(value)
	case "operatingHours":
		d.EnergyCheck.OperatingHours = asString(value)
		d.EnergyCheck.Distribution = d.EnergyCheck.Distribution.Recalculate(d.OperatingHours())
	default:
		return ErrUnknownField
	}
	return nil
}

func setLocationField(loc *Location, field string, value any) error {
	switch field {
	case "address":
		loc.Address = asString(value)
	case "postalCode":
		loc.PostalCode = asString(value)
	case "city":
		loc.City = asString(value)
	case "country":
		loc.Country = asString(value)
	default:
		return ErrUnknownField
	}
	return nil
}

func setContactField(c *Contact, field string, value any) error {
	switch field {
	case "name":
		c.Name = asString(value)
	case "mailAddress":
		c.MailAddress = asString(value)
	case "phone":
		c.Phone = asString(value)
	case "countryCode":
		c.CountryCode = asString(value)
	default:
		return ErrUnknownField
	}
	return nil
}

func (d *FacilityDraft) clearError(field string) {
	if d.Errors == nil {
		return
	}
	delete(d.Errors, field)
	if field == "xrgiID" {
		delete(d.Errors, "xrgiIdNumber")
	}
}

func (d *FacilityDraft) clearErrorPrefix(prefix string) {
	for key := range d.Errors {
		if strings.HasPrefix(key, prefix) {
			delete(d.Errors, key)
		}
	}
}

// RecordErrors merges step-validation errors into the draft error map.
func (d FacilityDraft) RecordErrors(errs map[string]string) FacilityDraft {
	draft := d.Clone()
	if draft.Errors == nil {
		draft.Errors = make(map[string]string, len(errs))
	}
	for key, message := range errs {
		draft.Errors[key] = message
	}
	return draft
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return ""
	}
}

func asBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1" || v == "yes"
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}
