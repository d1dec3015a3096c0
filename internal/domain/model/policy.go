package model

// AttendancePolicy is the set of movements a ticket allows at the gate.
type AttendancePolicy struct {
	CheckInAllowed  bool `json:"check_in_allowed" yaml:"check_in_allowed"`
	CheckOutAllowed bool `json:"check_out_allowed" yaml:"check_out_allowed"`
	ReentryAllowed  bool `json:"reentry_allowed" yaml:"reentry_allowed"`
}

// PolicyOverride carries per-credential exceptions; nil fields keep the ticket default.
type PolicyOverride struct {
	CheckIn  *bool `json:"check_in,omitempty"`
	CheckOut *bool `json:"check_out,omitempty"`
	Reentry  *bool `json:"reentry,omitempty"`
}

func (o PolicyOverride) IsZero() bool {
	return o.CheckIn == nil && o.CheckOut == nil && o.Reentry == nil
}

// Apply returns p with every non-nil override field replacing the default.
func (o PolicyOverride) Apply(p AttendancePolicy) AttendancePolicy {
	if o.CheckIn != nil {
		p.CheckInAllowed = *o.CheckIn
	}
	if o.CheckOut != nil {
		p.CheckOutAllowed = *o.CheckOut
	}
	if o.Reentry != nil {
		p.ReentryAllowed = *o.Reentry
	}
	return p
}
