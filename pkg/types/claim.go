package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrClaimNotFound is returned by ParseClaimFile when the file does not exist.
	ErrClaimNotFound = errors.New("claim file not found")

	// ErrInvalidClaim wraps every decode or validation failure of a claim.
	ErrInvalidClaim = errors.New("invalid claim")
)

// OtherParty identifies the other driver involved in a loss.
type OtherParty struct {
	Name         string `json:"name,omitempty"`
	Insurer      string `json:"insurer,omitempty"`
	PolicyNumber string `json:"policy_number,omitempty"`

	// AtFault is nil when the adjuster has not recorded fault for the
	// other party. An explicit false blocks subrogation.
	AtFault *bool `json:"at_fault,omitempty"`
}

// Identified reports whether the party can be pursued: a name or a policy
// number is on file.
func (o *OtherParty) Identified() bool {
	return o != nil && (o.Name != "" || o.PolicyNumber != "")
}

// Insured reports whether the party carries insurance we can recover from.
func (o *OtherParty) Insured() bool {
	return o != nil && o.Insurer != ""
}

// ClaimInfo is a normalised First Notice of Loss.
type ClaimInfo struct {
	ClaimNumber         string  `json:"claim_number" validate:"required"`
	PolicyNumber        string  `json:"policy_number" validate:"required"`
	ClaimantName        string  `json:"claimant_name" validate:"required"`
	DateOfLoss          string  `json:"date_of_loss" validate:"required"`
	LossDescription     string  `json:"loss_description" validate:"required"`
	EstimatedRepairCost float64 `json:"estimated_repair_cost" validate:"gte=0"`

	VehicleDetails  string  `json:"vehicle_details,omitempty"`
	VehicleUse      string  `json:"vehicle_use,omitempty"`
	LossType        string  `json:"loss_type,omitempty"`
	ActualCashValue float64 `json:"actual_cash_value,omitempty" validate:"gte=0"`

	// FaultPercentage is the insured's share of fault, 0-100.
	FaultPercentage *float64    `json:"fault_percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	OtherParty      *OtherParty `json:"other_party,omitempty"`

	PoliceReportFiled     *bool    `json:"police_report_filed,omitempty"`
	InjuriesReported      bool     `json:"injuries_reported,omitempty"`
	ReportDate            string   `json:"report_date,omitempty"`
	CommercialEndorsement *bool    `json:"commercial_endorsement,omitempty"`
	Deductible            *float64 `json:"deductible,omitempty" validate:"omitempty,gte=0"`
}

// legacyKeys maps field names from older intake files to current names.
var legacyKeys = [][2]string{
	{"damage_amount", "estimated_repair_cost"},
	{"policyholder_name", "claimant_name"},
	{"date_of_incident", "date_of_loss"},
	{"description", "loss_description"},
	{"vehicle_value", "actual_cash_value"},
}

// ParseClaim decodes a JSON claim from r.
func ParseClaim(r io.Reader) (*ClaimInfo, error) {
	var raw map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidClaim, err)
	}
	return DecodeClaim(raw)
}

// ParseClaimFile reads and decodes the claim stored at path.
func ParseClaimFile(path string) (*ClaimInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrClaimNotFound, path)
		}
		return nil, fmt.Errorf("open claim %q: %w", path, err)
	}
	defer f.Close()
	return ParseClaim(f)
}

// DecodeClaim builds a ClaimInfo from an already decoded JSON object.
// The input map is not modified.
func DecodeClaim(raw map[string]any) (*ClaimInfo, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty claim", ErrInvalidClaim)
	}
	data := make(map[string]any, len(raw))
	for k, v := range raw {
		data[k] = v
	}
	for _, kv := range legacyKeys {
		if v, ok := data[kv[0]]; ok {
			data[kv[1]] = v
			delete(data, kv[0])
		}
	}
	if _, ok := data["estimated_repair_cost"]; !ok {
		return nil, fmt.Errorf("%w: estimated_repair_cost is required", ErrInvalidClaim)
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}
	var c ClaimInfo
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks required fields and numeric ranges.
func (c *ClaimInfo) Validate() error {
	if err := Validate(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}
	return nil
}
