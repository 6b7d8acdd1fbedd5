package rules

import (
	"testing"

	"github.com/oakmere/shoebox/internal/model"
)

func fullProfile() *model.ClientProfile {
	return &model.ClientProfile{ID: "c1", Name: "Full", HasVehicle: true, HasHomeOffice: true}
}

func bareProfile() *model.ClientProfile {
	return &model.ClientProfile{ID: "c2", Name: "Bare"}
}

func TestAssign(t *testing.T) {
	tests := []struct {
		name        string
		taxCategory string
		profile     *model.ClientProfile
		want        model.Worksheet
	}{
		{"standard category maps to 6A", "Supplies", bareProfile(), model.Worksheet6A},
		{"auto category with vehicle", "Car & Truck Expenses", fullProfile(), model.WorksheetAuto},
		{"auto category without vehicle falls back", "Car & Truck Expenses", bareProfile(), model.WorksheetPersonal},
		{"home office with flag", "Home Office", fullProfile(), model.WorksheetHomeOffice},
		{"home office without flag falls back", "Home Office", bareProfile(), model.WorksheetPersonal},
		{"personal category stays personal", "Personal", fullProfile(), model.WorksheetPersonal},
		{"unknown category lands in catch-all 6A", "Beekeeping Gear", fullProfile(), model.Worksheet6A},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Assign(tt.taxCategory, tt.profile); got != tt.want {
				t.Errorf("Assign(%q) = %q, want %q", tt.taxCategory, got, tt.want)
			}
		})
	}
}

func TestAssign_NeverAssignsInapplicableWorksheet(t *testing.T) {
	profile := bareProfile()
	for _, name := range StandardTaxCategories() {
		got := Assign(name, profile)
		if got == model.WorksheetAuto || got == model.WorksheetHomeOffice {
			t.Errorf("Assign(%q) = %q for client with no vehicle or home office", name, got)
		}
	}
}

func TestDowngrade(t *testing.T) {
	tests := []struct {
		from model.Worksheet
		want model.Worksheet
	}{
		{model.WorksheetAuto, model.Worksheet6A},
		{model.WorksheetHomeOffice, model.Worksheet6A},
		{model.Worksheet6A, model.WorksheetPersonal},
		{model.WorksheetPersonal, model.WorksheetPersonal},
		{model.WorksheetNone, model.WorksheetNone},
	}

	for _, tt := range tests {
		if got := Downgrade(tt.from); got != tt.want {
			t.Errorf("Downgrade(%q) = %q, want %q", tt.from, got, tt.want)
		}
	}
}

func TestIsMisuseProne(t *testing.T) {
	prone := []string{"Meals", "Travel", "Entertainment", "Car & Truck Expenses", "Home Office"}
	for _, name := range prone {
		if !IsMisuseProne(name) {
			t.Errorf("IsMisuseProne(%q) = false, want true", name)
		}
	}
	if IsMisuseProne("Supplies") {
		t.Error("IsMisuseProne(Supplies) = true, want false")
	}
}

func TestStandardWorksheet(t *testing.T) {
	ws, ok := StandardWorksheet("Car & Truck Expenses")
	if !ok || ws != model.WorksheetAuto {
		t.Errorf("StandardWorksheet(Car & Truck Expenses) = %q, %v", ws, ok)
	}
	if _, ok := StandardWorksheet("Beekeeping Gear"); ok {
		t.Error("StandardWorksheet reported a custom category as standard")
	}
}

func TestStandardTaxCategories_SortedAndComplete(t *testing.T) {
	names := StandardTaxCategories()
	if len(names) != len(standardCategories) {
		t.Fatalf("got %d categories, want %d", len(names), len(standardCategories))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("categories not sorted: %q before %q", names[i-1], names[i])
		}
	}
}
