package dto

const (
	ExtractionMethodGemini    = "gemini"
	ExtractionMethodRuleBased = "rule_based"

	UnknownValue = "unknown"
)

// Features are the card attributes extracted from a listing text.
type Features struct {
	CardName   string                 `json:"card_name"`
	Rarity     string                 `json:"rarity"`
	Edition    string                 `json:"edition"`
	Condition  string                 `json:"condition"`
	Confidence float64                `json:"confidence"`
	Method     string                 `json:"method"`
	Extras     map[string]interface{} `json:"extras,omitempty"`
}

// Normalize fills blank attributes with "unknown" and bounds the confidence.
func (f Features) Normalize(defaultConfidence float64) Features {
	if f.CardName == "" {
		f.CardName = UnknownValue
	}
	if f.Rarity == "" {
		f.Rarity = UnknownValue
	}
	if f.Edition == "" {
		f.Edition = UnknownValue
	}
	if f.Condition == "" {
		f.Condition = UnknownValue
	}
	if f.Confidence <= 0 {
		f.Confidence = defaultConfidence
	}
	if f.Confidence > 1 {
		f.Confidence = 1
	}
	if f.Extras == nil {
		f.Extras = map[string]interface{}{}
	}
	return f
}
