package audit

import (
	"time"

	"github.com/keyxmakerx/findfirst/internal/plugins/auth"
)

// Fields are the audit columns carried by every bookmark and tag row. They
// are set only through StampCreate and StampUpdate, which every write path
// calls explicitly before persisting.
type Fields struct {
	CreatedBy        *string   `json:"createdBy,omitempty"`
	CreatedDate      time.Time `json:"createdDate"`
	LastModifiedBy   *string   `json:"lastModifiedBy,omitempty"`
	LastModifiedDate time.Time `json:"lastModifiedDate"`
}

// Auditor returns the name recorded for writes made by p, or nil when no
// principal is known. Nil is persisted as SQL NULL.
func Auditor(p *auth.Principal) *string {
	if p == nil || p.Username == "" {
		return nil
	}
	name := p.Username
	return &name
}

// StampCreate fills every audit field for a new row.
func StampCreate(f *Fields, p *auth.Principal, now time.Time) {
	now = now.UTC().Truncate(time.Microsecond)
	f.CreatedBy = Auditor(p)
	f.CreatedDate = now
	f.LastModifiedBy = f.CreatedBy
	f.LastModifiedDate = now
}

// StampUpdate records p as the last modifier. Creation fields are untouched.
func StampUpdate(f *Fields, p *auth.Principal, now time.Time) {
	f.LastModifiedBy = Auditor(p)
	f.LastModifiedDate = now.UTC().Truncate(time.Microsecond)
}
