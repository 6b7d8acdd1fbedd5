package model

// Status tracks a transaction's progress through the pipeline.
type Status string

// Pipeline statuses. Pass3Done, Failed, and NeedsReview are terminal.
const (
	StatusPending     Status = "PENDING"
	StatusPass1Done   Status = "PASS1_DONE"
	StatusPass2Done   Status = "PASS2_DONE"
	StatusPass3Done   Status = "PASS3_DONE"
	StatusFailed      Status = "FAILED"
	StatusNeedsReview Status = "NEEDS_REVIEW"
)

// Terminal reports whether no further pass may run.
func (s Status) Terminal() bool {
	switch s {
	case StatusPass3Done, StatusFailed, StatusNeedsReview:
		return true
	default:
		return false
	}
}

// Reached reports whether the pipeline has completed the given pass. A pass
// may only run once its predecessor's status is reached.
func (s Status) Reached(pass PassType) bool {
	switch pass {
	case PassPayee:
		return s == StatusPass1Done || s == StatusPass2Done || s == StatusPass3Done || s == StatusNeedsReview
	case PassCategory:
		return s == StatusPass2Done || s == StatusPass3Done || s == StatusNeedsReview
	case PassTax:
		return s == StatusPass3Done || s == StatusNeedsReview
	default:
		return false
	}
}

// StatusForPass returns the status a transaction holds after completing pass.
func StatusForPass(pass PassType) Status {
	switch pass {
	case PassPayee:
		return StatusPass1Done
	case PassCategory:
		return StatusPass2Done
	case PassTax:
		return StatusPass3Done
	default:
		return StatusPending
	}
}

// PriorStatus returns the status a transaction must hold before pass may run.
func PriorStatus(pass PassType) Status {
	switch pass {
	case PassPayee:
		return StatusPending
	case PassCategory:
		return StatusPass1Done
	case PassTax:
		return StatusPass2Done
	default:
		return StatusPending
	}
}

// PassOrder lists the passes in execution order.
func PassOrder() []PassType {
	return []PassType{PassPayee, PassCategory, PassTax}
}
