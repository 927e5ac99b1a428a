package llm

import (
	"fmt"
	"strings"

	"github.com/Veraticus/the-spice-must-learn/internal/model"
)

const systemPrompt = "You are a financial transaction classifier. You MUST respond with ONLY a valid JSON object. Do not include any explanatory text, markdown formatting, or commentary before or after the JSON. Start your response directly with { and end with }."

// Request is what the fallback classifier is asked to decide.
type Request struct {
	NormalizedText string
	Currency       string
	Candidates     []model.Category
	Amount         float64
}

// buildPrompt creates the prompt for transaction classification.
func buildPrompt(req Request) string {
	var categoryList strings.Builder
	for _, cat := range req.Candidates {
		if cat.Description != "" {
			fmt.Fprintf(&categoryList, "- %s: %s\n", cat.ID, cat.Description)
		} else {
			fmt.Fprintf(&categoryList, "- %s\n", cat.ID)
		}
	}

	amount := fmt.Sprintf("%.2f", req.Amount)
	if req.Currency != "" {
		amount += " " + req.Currency
	}

	return fmt.Sprintf(`Classify this financial transaction into exactly one of the categories below, based solely on the transaction details.

IMPORTANT GUIDELINES:
- Base your classification purely on what the transaction IS, not assumptions about its purpose
- You MUST choose one of the listed categories; never invent a new one
- Report how confident you are as a number between 0.0 and 1.0

Categories:
%s
Transaction Details:
Description: %s
Amount: %s

Respond with JSON only:
{"category": "<category from the list>", "confidence": <0.0-1.0>}`,
		categoryList.String(),
		req.NormalizedText,
		amount)
}
