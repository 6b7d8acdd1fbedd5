package model

import "time"

// ClientProfile describes the business context a client's transactions are
// classified under. The pipeline only reads profiles; client management
// mutates them elsewhere.
type ClientProfile struct {
	CreatedAt        time.Time
	ID               string
	Name             string
	BusinessType     string
	Description      string
	IndustryKeywords []string
	HasVehicle       bool
	HasHomeOffice    bool
}

// HasBusinessContext reports whether the profile carries any signal that
// could justify business use. Without it, Pass 3 defaults to Personal.
func (p *ClientProfile) HasBusinessContext() bool {
	return p.BusinessType != "" || p.Description != "" || len(p.IndustryKeywords) > 0
}
