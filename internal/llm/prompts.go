package llm

import (
	"fmt"
	"strings"

	"github.com/oakmere/shoebox/internal/model"
)

// profileContext renders the client profile block shared by every pass.
func profileContext(p model.ClientProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Client: %s\n", p.Name)
	if p.BusinessType != "" {
		fmt.Fprintf(&b, "Business type: %s\n", p.BusinessType)
	}
	if p.Description != "" {
		fmt.Fprintf(&b, "Business description: %s\n", p.Description)
	}
	if len(p.IndustryKeywords) > 0 {
		fmt.Fprintf(&b, "Industry keywords: %s\n", strings.Join(p.IndustryKeywords, ", "))
	}
	fmt.Fprintf(&b, "Has vehicle: %t\nHas home office: %t\n", p.HasVehicle, p.HasHomeOffice)
	return b.String()
}

// buildPayeePrompt creates the Pass 1 prompt.
func buildPayeePrompt(req PayeeRequest) string {
	enrichment := ""
	if req.Enrichment != "" {
		enrichment = fmt.Sprintf("\nVendor lookup context:\n%s\n", req.Enrichment)
	}

	return fmt.Sprintf(`Identify the payee behind this bank statement line.

%s
Transaction:
Description: %s
Amount: $%.2f
%s
Respond with this JSON schema:
{
  "payee": "canonical merchant or payee name",
  "business_description": "one sentence describing what this vendor sells or does",
  "category_hint": "a rough expense category guess",
  "confidence": "high|medium|low",
  "ambiguous": false
}

Set "ambiguous" to true when the description could plausibly refer to more
than one distinct vendor. Use "low" confidence when the description gives
little to identify the payee.`,
		profileContext(req.Profile),
		req.Description,
		req.Amount,
		enrichment)
}

// buildCategoryPrompt creates the Pass 2 prompt.
func buildCategoryPrompt(req CategoryRequest) string {
	categoryList := ""
	for _, cat := range req.Categories {
		categoryList += fmt.Sprintf("- %s\n", cat)
	}

	return fmt.Sprintf(`Choose the expense category for this transaction from the client's catalog.

%s
Transaction:
Description: %s
Payee: %s
Payee business: %s
Amount: $%.2f
Category hint: %s

Client categories:
%s
Respond with this JSON schema:
{
  "general_category": "a category name from the list above, or \"Other\" if none fits",
  "confidence": "high|medium|low",
  "reasoning": "one sentence"
}

Classify by what the transaction IS, not why it might have occurred. Pick
"Other" rather than forcing a bad fit.`,
		profileContext(req.Profile),
		req.Description,
		req.Payee,
		req.BusinessDescription,
		req.Amount,
		req.CategoryHint,
		categoryList)
}

// buildTaxPrompt creates the Pass 3 prompt.
func buildTaxPrompt(req TaxRequest) string {
	categoryList := ""
	for _, cat := range req.TaxCategories {
		categoryList += fmt.Sprintf("- %s\n", cat)
	}

	noContext := ""
	if !req.Profile.HasBusinessContext() {
		noContext = "\n- This profile gives no business context. Treat every transaction as" +
			"\n  Personal unless the description itself proves business use."
	}

	return fmt.Sprintf(`Assign the tax treatment for this classified transaction.

%s
Transaction:
Description: %s
Payee: %s
Payee business: %s
General category: %s
Amount: $%.2f

Known tax categories:
%s
Respond with this JSON schema:
{
  "tax_category": "tax category name",
  "worksheet": "6A|Auto|HomeOffice|Personal|None",
  "business_percentage": 0,
  "confidence": "high|medium|low",
  "reasoning": "one sentence",
  "open_questions": "anything a human reviewer should verify, or empty string"
}

RULES:
- Default to worksheet "Personal" with business_percentage 0. Assign a
  business worksheet ONLY when the category, payee business, or client
  profile gives explicit justification for business use.
- business_percentage must be 0 for "Personal" and greater than 0 only for
  "6A", "Auto", or "HomeOffice".
- Never assign "Auto" unless the client has a vehicle, and never assign
  "HomeOffice" unless the client has a home office.%s`,
		profileContext(req.Profile),
		req.Description,
		req.Payee,
		req.BusinessDescription,
		req.GeneralCategory,
		req.Amount,
		categoryList,
		noContext)
}
