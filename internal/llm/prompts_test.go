package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oakmere/shoebox/internal/model"
)

func TestBuildTaxPrompt_BusinessContext(t *testing.T) {
	req := TaxRequest{
		Profile:         model.ClientProfile{ID: "bare", Name: "Blank Client"},
		Description:     "SHELL OIL 5521",
		GeneralCategory: "Other",
		TaxCategories:   []string{"Supplies", "Personal"},
		Amount:          -40.00,
	}

	bare := buildTaxPrompt(req)
	assert.Contains(t, bare, "no business context")

	req.Profile.Description = "Residential appliance repair"
	withContext := buildTaxPrompt(req)
	assert.NotContains(t, withContext, "no business context")
	assert.Contains(t, withContext, "Residential appliance repair")
}
