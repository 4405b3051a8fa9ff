package errors

import "fmt"

// Rejection describes a single input entry that was skipped during a batch.
// Rejections never abort a batch; they are counted and logged.
type Rejection struct {
	Email  string
	Reason string
}

func (r Rejection) String() string {
	if r.Email == "" {
		return r.Reason
	}
	return fmt.Sprintf("%s: %s", r.Email, r.Reason)
}

// Rejections is the ordered list of entries rejected by one operation.
type Rejections []Rejection

// Add appends a rejection.
func (rs *Rejections) Add(email, reason string) {
	*rs = append(*rs, Rejection{Email: email, Reason: reason})
}
