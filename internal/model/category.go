package model

// ExpenseCategory is one entry of a client's category catalog for a tax year.
type ExpenseCategory struct {
	Name           string
	TaxImplication string
	Worksheet      Worksheet
	ID             int
	TaxYear        int
	SortOrder      int
	IsCustom       bool
}

// CategoryCatalog is the ordered category set for one client and tax year.
// The rule-mapping step and the worksheet engine both consult it.
type CategoryCatalog struct {
	ClientID   string
	TaxYear    int
	Categories []ExpenseCategory
}

// Find returns the catalog entry with the given name, or nil.
func (c *CategoryCatalog) Find(name string) *ExpenseCategory {
	for i := range c.Categories {
		if c.Categories[i].Name == name {
			return &c.Categories[i]
		}
	}
	return nil
}

// Names returns the category names in catalog order.
func (c *CategoryCatalog) Names() []string {
	names := make([]string, len(c.Categories))
	for i, cat := range c.Categories {
		names[i] = cat.Name
	}
	return names
}
