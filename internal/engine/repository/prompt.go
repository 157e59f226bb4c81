package repository

import (
	"fmt"
	"strings"
)

// BuildFeatureExtractionPrompt asks the model for the card attributes of one
// listing as strict JSON.
func BuildFeatureExtractionPrompt(title, description string) string {
	var sb strings.Builder
	sb.WriteString("Extract structured fields for a collectible game card listing.\n")
	sb.WriteString("Return strict JSON with fields: card_name, rarity, edition, card_condition, extras, confidence.\n")
	sb.WriteString("confidence must be 0-1 float, extras must be an object.\n")
	sb.WriteString("If unknown, use string 'unknown'.\n\n")
	sb.WriteString(fmt.Sprintf("title: %s\n", title))
	sb.WriteString(fmt.Sprintf("description: %s\n", description))
	return sb.String()
}
