// internal/engine/survey/calculator.go
package survey

import (
	"fmt"
	"math"
	"sort"

	"rooftrust-engine/internal/common/config"
	stderrors "rooftrust-engine/internal/common/errors"
	"rooftrust-engine/internal/models"
)

// Survey input keys accepted by update-survey-input. Values arrive untyped
// from the API layer and are validated per key here, inside the engine.
const (
	KeyPostcode            = "postcode"
	KeyBuildingHeight      = "building_height_meters"
	KeyRoofPitch           = "roof_pitch_degrees"
	KeyRoofArea            = "roof_area_sqm"
	KeyLoftInspection      = "loft_inspection_accessible"
	KeySitePhotosCount     = "site_photos_count"
	KeyScaffoldingRequired = "scaffolding_required"
	KeyPavementOccupation  = "pavement_occupation"
	KeySharedParapetWall   = "shared_parapet_wall"
	KeySpecialtyRepairs    = "specialty_repairs"
)

// Calculator derives document classification and the cost/duration estimate
// from the current survey inputs, fixing spec and approved variations. It is
// stateless; all constants come from the rules table.
type Calculator struct {
	rules config.RulesConfig
}

func NewCalculator(rules config.RulesConfig) *Calculator {
	return &Calculator{rules: rules}
}

// ApplyInput merges one field into the survey inputs and recomputes the
// document classification. Negative numeric inputs are rejected rather than
// silently producing negative costs.
func (c *Calculator) ApplyInput(state *models.ProjectState, key string, value interface{}) error {
	switch key {
	case KeyPostcode:
		s, err := asString(key, value)
		if err != nil {
			return err
		}
		state.Inputs.Postcode = s
	case KeyBuildingHeight:
		f, err := asNonNegativeNumber(key, value)
		if err != nil {
			return err
		}
		state.Inputs.BuildingHeightMeters = f
	case KeyRoofPitch:
		f, err := asNonNegativeNumber(key, value)
		if err != nil {
			return err
		}
		state.Inputs.RoofPitchDegrees = f
	case KeyRoofArea:
		f, err := asNonNegativeNumber(key, value)
		if err != nil {
			return err
		}
		state.Inputs.RoofAreaSqm = f
	case KeyLoftInspection:
		b, err := asBool(key, value)
		if err != nil {
			return err
		}
		state.Inputs.LoftInspectionDone = b
	case KeySitePhotosCount:
		f, err := asNonNegativeNumber(key, value)
		if err != nil {
			return err
		}
		state.Inputs.SitePhotosCount = int(f)
	case KeyScaffoldingRequired:
		b, err := asBool(key, value)
		if err != nil {
			return err
		}
		state.Inputs.ScaffoldingRequired = b
	case KeyPavementOccupation:
		b, err := asBool(key, value)
		if err != nil {
			return err
		}
		state.Inputs.PavementOccupation = b
	case KeySharedParapetWall:
		b, err := asBool(key, value)
		if err != nil {
			return err
		}
		state.Inputs.SharedParapetWall = b
	case KeySpecialtyRepairs:
		items, err := c.asRepairList(value)
		if err != nil {
			return err
		}
		state.Inputs.SpecialtyRepairs = items
	default:
		return stderrors.NewUnknownInputKeyError(key)
	}

	state.DocType = c.Classify(state.Inputs)
	return nil
}

// Classify derives the document type: a binding quote requires the loft
// inspection and at least five site photos; anything less is a non-binding
// estimate.
func (c *Calculator) Classify(inputs models.SurveyInputs) models.DocumentType {
	if inputs.LoftInspectionDone && inputs.SitePhotosCount >= 5 {
		return models.BindingQuote
	}
	return models.NonBindingEstimate
}

// Estimate is a pure function over the current state: calling it twice with
// unchanged inputs yields identical results, and it never mutates anything.
func (c *Calculator) Estimate(state *models.ProjectState) models.QuoteResult {
	p := c.rules.Pricing
	in := state.Inputs

	complexity := 1.0
	if in.BuildingHeightMeters > p.HeightThresholdM {
		complexity *= p.HeightFactor
	}
	if in.RoofPitchDegrees > p.PitchThresholdDeg {
		complexity *= p.PitchFactor
	}

	windZone := 1.0
	if state.FixingSpec != nil {
		for _, z := range p.HighExposureZones {
			if state.FixingSpec.Zone == z {
				windZone = p.WindZoneFactor
				break
			}
		}
	}

	baseCost := p.BaseRatePerSqm * in.RoofAreaSqm * complexity * windZone
	labour := baseCost * p.LabourShare
	materials := baseCost * (1 - p.LabourShare)

	for _, item := range sortedRepairs(in.SpecialtyRepairs) {
		rule, ok := p.SpecialtyRepairs[item]
		if !ok || rule.AreaPerUnit <= 0 {
			continue
		}
		qty := math.Ceil(in.RoofAreaSqm / rule.AreaPerUnit)
		materials += qty * rule.UnitRate
	}

	var logistics float64
	if in.ScaffoldingRequired {
		logistics = c.scaffoldCost(in.BuildingHeightMeters) + p.SkipHireFee
	}

	var statutory float64
	var warnings []string
	if in.ScaffoldingRequired && in.PavementOccupation {
		statutory += p.PavementLicenceFee
		warnings = append(warnings,
			"Pavement licence required for scaffolding on the public highway; allow around 10 working days for the local authority to process it.")
	}
	if in.SharedParapetWall {
		warnings = append(warnings,
			"Shared parapet wall: the Party Wall etc. Act 1996 requires two months' written notice to the adjoining owner before work starts.")
	}

	variationCost, variationDays := state.ApprovedVariationTotals()

	baseDuration := int(math.Ceil(float64(p.BaseDurationDays) * complexity))
	totalDuration := baseDuration + variationDays

	return models.QuoteResult{
		LabourCost:             labour,
		MaterialsCost:          materials,
		LogisticsCost:          logistics,
		StatutoryFees:          statutory,
		Warnings:               warnings,
		VariationCost:          variationCost,
		TotalCost:              labour + materials + logistics + statutory + variationCost,
		BaseDurationDays:       baseDuration,
		VariationDays:          variationDays,
		TotalDurationDays:      totalDuration,
		WeatherContingencyDays: int(math.Ceil(float64(totalDuration) * p.ContingencyRatio)),
		DocumentType:           c.Classify(in),
	}
}

func (c *Calculator) scaffoldCost(heightM float64) float64 {
	for _, tier := range c.rules.Pricing.ScaffoldTiers {
		if tier.MaxHeightM == 0 || heightM <= tier.MaxHeightM {
			return tier.Cost
		}
	}
	return 0
}

// asRepairList validates the selected specialty repair items against the
// rules table.
func (c *Calculator) asRepairList(value interface{}) ([]string, error) {
	raw, ok := value.([]interface{})
	if !ok {
		if typed, ok := value.([]string); ok {
			raw = make([]interface{}, len(typed))
			for i, s := range typed {
				raw[i] = s
			}
		} else {
			return nil, stderrors.NewValidationError(
				fmt.Sprintf("%s: expected a list of repair item ids", KeySpecialtyRepairs))
		}
	}

	items := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, stderrors.NewValidationError(
				fmt.Sprintf("%s: repair item ids must be strings", KeySpecialtyRepairs))
		}
		if _, known := c.rules.Pricing.SpecialtyRepairs[s]; !known {
			return nil, stderrors.NewValidationError(
				fmt.Sprintf("%s: unknown repair item %q", KeySpecialtyRepairs, s))
		}
		items = append(items, s)
	}
	return items, nil
}

func sortedRepairs(items []string) []string {
	out := append([]string(nil), items...)
	sort.Strings(out)
	return out
}

func asString(key string, value interface{}) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", stderrors.NewValidationError(fmt.Sprintf("%s: expected a string", key))
	}
	return s, nil
}

func asBool(key string, value interface{}) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, stderrors.NewValidationError(fmt.Sprintf("%s: expected a boolean", key))
	}
	return b, nil
}

func asNonNegativeNumber(key string, value interface{}) (float64, error) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		return 0, stderrors.NewValidationError(fmt.Sprintf("%s: expected a number", key))
	}
	if f < 0 {
		return 0, stderrors.NewNegativeInputError(key, f)
	}
	return f, nil
}
