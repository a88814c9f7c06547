package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/core/id"
)

var hundred = decimal.NewFromInt(100)

// VarietalShare is the share of one grape varietal in a drink's blend.
type VarietalShare struct {
	VarietalID id.ID           `json:"varietal_id"`
	Percentage decimal.Decimal `json:"percentage"`
}

// ParseVarietalShare reads the legacy "id:percentage" encoding. It exists to
// import old data; new code builds VarietalShare values directly.
func ParseVarietalShare(s string) (VarietalShare, error) {
	idPart, pctPart, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return VarietalShare{}, apperror.NewValidation(fmt.Sprintf("varietal share %q: expected id:percentage", s))
	}
	vid, err := id.Parse(idPart)
	if err != nil {
		return VarietalShare{}, apperror.NewValidation(fmt.Sprintf("varietal share %q: bad varietal id", s)).WithCause(err)
	}
	pct, err := decimal.NewFromString(strings.TrimSpace(pctPart))
	if err != nil {
		return VarietalShare{}, apperror.NewValidation(fmt.Sprintf("varietal share %q: bad percentage", s)).WithCause(err)
	}
	share := VarietalShare{VarietalID: vid, Percentage: pct}
	if err := share.Validate(); err != nil {
		return VarietalShare{}, err
	}
	return share, nil
}

// UnmarshalJSON accepts the structured object and the legacy
// "id:percentage" string.
func (v *VarietalShare) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		share, err := ParseVarietalShare(s)
		if err != nil {
			return err
		}
		*v = share
		return nil
	}

	type plain VarietalShare
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*v = VarietalShare(p)
	return nil
}

// NewVarietalShare builds a share from form values.
func NewVarietalShare(varietalID, percentage string) (VarietalShare, error) {
	vid, err := id.Parse(varietalID)
	if err != nil {
		return VarietalShare{}, apperror.NewValidation("bad varietal id").WithDetail("value", varietalID)
	}
	pct, err := decimal.NewFromString(strings.TrimSpace(percentage))
	if err != nil {
		return VarietalShare{}, apperror.NewValidation("bad varietal percentage").WithDetail("value", percentage)
	}
	share := VarietalShare{VarietalID: vid, Percentage: pct}
	return share, share.Validate()
}

// Validate checks 0 < percentage <= 100.
func (v VarietalShare) Validate() error {
	if v.VarietalID <= 0 {
		return apperror.NewValidation("varietal id must be positive").WithDetail("field", "varietals")
	}
	if !v.Percentage.IsPositive() || v.Percentage.GreaterThan(hundred) {
		return apperror.NewValidation(fmt.Sprintf("varietal %s: percentage must be in (0, 100]", v.VarietalID)).
			WithDetail("field", "varietals")
	}
	return nil
}

// String renders the share for display, e.g. "3 (40%)".
func (v VarietalShare) String() string {
	return fmt.Sprintf("%s (%s%%)", v.VarietalID, v.Percentage.String())
}

// ValidateShares checks every share, rejects duplicate varietals and a
// total above 100%.
func ValidateShares(shares []VarietalShare) error {
	seen := make(map[id.ID]struct{}, len(shares))
	total := decimal.Zero
	for _, s := range shares {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := seen[s.VarietalID]; dup {
			return apperror.NewValidation(fmt.Sprintf("varietal %s listed twice", s.VarietalID)).
				WithDetail("field", "varietals")
		}
		seen[s.VarietalID] = struct{}{}
		total = total.Add(s.Percentage)
	}
	if total.GreaterThan(hundred) {
		return apperror.NewValidation(fmt.Sprintf("varietal percentages add up to %s%%", total.String())).
			WithDetail("field", "varietals")
	}
	return nil
}
