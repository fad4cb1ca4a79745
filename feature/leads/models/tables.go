package models

// Table describes one synchronized record variant: where it lives locally,
// what it is called remotely, its field registry and mapping, and which sync
// behaviors apply to it.
type Table struct {
	// Name is the remote table name.
	Name string
	// LocalTable is the relational table records persist to.
	LocalTable string
	// RemoteTableID is the remote system's opaque table id, used to match
	// webhook change payloads. Populated from the cached schema snapshot.
	RemoteTableID string

	// IdentityField is the remote field carrying the identity URL.
	IdentityField string
	// OwnerField is the remote field whose compound {name, id} value feeds
	// the user-identity cache. Blank when the variant has no owner.
	OwnerField string
	// EnrichedField is the local field whose presence marks enrichment as
	// complete. Blank disables enrichment for the variant.
	EnrichedField string

	Registry *Registry
	Mapping  Mapping

	// DenyPush lists local fields that must never be pushed remotely, such
	// as remote-side creation timestamps.
	DenyPush []string
}

// EnrichmentEnabled reports whether records of this table go through the
// enrichment step after discovery.
func (t *Table) EnrichmentEnabled() bool {
	return t.EnrichedField != ""
}

// PushDenied reports whether a local field is on the push deny-list.
func (t *Table) PushDenied(field string) bool {
	for _, deny := range t.DenyPush {
		if deny == field {
			return true
		}
	}
	return false
}

// Projects is the discovery table: records found by feed scraping.
func Projects() *Table {
	return &Table{
		Name:          "Projects",
		LocalTable:    "projects",
		IdentityField: "URL",
		Registry: NewRegistry(
			FieldSpec{Name: "title", Kind: KindString},
			FieldSpec{Name: "description", Kind: KindString},
			FieldSpec{Name: "shift", Kind: KindString},
			FieldSpec{Name: "budget", Kind: KindInt},
			FieldSpec{Name: "hourly", Kind: KindFloat},
			FieldSpec{Name: "country", Kind: KindString},
			FieldSpec{Name: "category", Kind: KindString},
			FieldSpec{Name: "project_type", Kind: KindString},
			FieldSpec{Name: "responsible", Kind: KindString},
			FieldSpec{Name: "relevant", Kind: KindString},
			FieldSpec{Name: "cause", Kind: KindString},
			FieldSpec{Name: "missed", Kind: KindBool, HasDefault: true, Default: false},
			FieldSpec{Name: "approved", Kind: KindBool, HasDefault: true, Default: false},
			FieldSpec{Name: "approval_time", Kind: KindTime},
			FieldSpec{Name: "comment", Kind: KindString},
		),
		Mapping: Mapping{
			"Title":         Scalar("title"),
			"Description":   Scalar("description"),
			"Shift":         Scalar("shift"),
			"Budget":        Scalar("budget"),
			"Hourly":        Scalar("hourly"),
			"Country":       Scalar("country"),
			"Category":      Scalar("category"),
			"Project Type":  Scalar("project_type"),
			"Responsible":   Sub("name", "responsible"),
			"Relevant":      Scalar("relevant"),
			"Cause":         Scalar("cause"),
			"Missed":        Scalar("missed"),
			"Approved":      Scalar("approved"),
			"Approval Time": Scalar("approval_time"),
			"Comment":       Scalar("comment"),
		},
		OwnerField: "Responsible",
		DenyPush:   []string{"approval_time"},
	}
}

// Proposals is the main pipeline table; its records are enriched from the
// job-board detail fetch after discovery.
func Proposals() *Table {
	return &Table{
		Name:          "Proposals",
		LocalTable:    "proposals",
		IdentityField: "URL",
		OwnerField:    "Proposal Owner",
		EnrichedField: "project_type",
		Registry: NewRegistry(
			FieldSpec{Name: "title", Kind: KindString},
			FieldSpec{Name: "shift", Kind: KindString},
			FieldSpec{Name: "proposal_owner", Kind: KindString},
			FieldSpec{Name: "sales_account", Kind: KindString},
			FieldSpec{Name: "relevant", Kind: KindString},
			FieldSpec{Name: "answer", Kind: KindBool, HasDefault: true, Default: false},
			FieldSpec{Name: "answer_date", Kind: KindTime},
			FieldSpec{Name: "client_name", Kind: KindString},
			FieldSpec{Name: "contract", Kind: KindBool, HasDefault: true, Default: false},
			FieldSpec{Name: "contract_date", Kind: KindTime},
			FieldSpec{Name: "hired", Kind: KindBool, HasDefault: true, Default: false},
			FieldSpec{Name: "hired_date", Kind: KindTime},
			FieldSpec{Name: "initial_interviews", Kind: KindInt},
			FieldSpec{Name: "actual_interviews", Kind: KindInt},
			FieldSpec{Name: "proposal_date", Kind: KindTime},
			FieldSpec{Name: "project_type", Kind: KindString},
			FieldSpec{Name: "budget", Kind: KindInt},
			FieldSpec{Name: "hourly", Kind: KindFloat},
			FieldSpec{Name: "country", Kind: KindString},
			FieldSpec{Name: "category", Kind: KindString},
			FieldSpec{Name: "industry", Kind: KindString},
			FieldSpec{Name: "company_size", Kind: KindString},
			FieldSpec{Name: "company_category", Kind: KindString},
		),
		Mapping: Mapping{
			"Title":              Scalar("title"),
			"Shift":              Scalar("shift"),
			"Proposal Owner":     Sub("name", "proposal_owner"),
			"Sales Account":      Scalar("sales_account"),
			"Relevant":           Scalar("relevant"),
			"Answer":             Scalar("answer"),
			"Answer Date":        Scalar("answer_date"),
			"Client Name":        Scalar("client_name"),
			"Contract":           Scalar("contract"),
			"Contract Date":      Scalar("contract_date"),
			"Hired":              Scalar("hired"),
			"Hired Date":         Scalar("hired_date"),
			"Initial Interviews": Scalar("initial_interviews"),
			"Actual Interviews":  Scalar("actual_interviews"),
			"Proposal Date":      Scalar("proposal_date"),
			"Project Type":       Scalar("project_type"),
			"Budget":             Scalar("budget"),
			"Hourly":             Scalar("hourly"),
			"Country":            Scalar("country"),
			"Category":           Scalar("category"),
			"Industry":           Scalar("industry"),
			"Company Size":       Scalar("company_size"),
			"Company Category":   Scalar("company_category"),
		},
		DenyPush: []string{"proposal_date", "proposal_owner", "sales_account"},
	}
}

// Leads holds inbound client leads mirrored from the remote base.
func Leads() *Table {
	return &Table{
		Name:          "Leads",
		LocalTable:    "leads",
		IdentityField: "URL",
		OwnerField:    "Responsible",
		Registry: NewRegistry(
			FieldSpec{Name: "client_name", Kind: KindString},
			FieldSpec{Name: "title", Kind: KindString},
			FieldSpec{Name: "country", Kind: KindString},
			FieldSpec{Name: "category", Kind: KindString},
			FieldSpec{Name: "budget", Kind: KindInt},
			FieldSpec{Name: "status", Kind: KindString},
			FieldSpec{Name: "responsible", Kind: KindString},
			FieldSpec{Name: "contacted", Kind: KindBool, HasDefault: true, Default: false},
			FieldSpec{Name: "contact_date", Kind: KindTime},
		),
		Mapping: Mapping{
			"Client Name":  Scalar("client_name"),
			"Title":        Scalar("title"),
			"Country":      Scalar("country"),
			"Category":     Scalar("category"),
			"Budget":       Scalar("budget"),
			"Status":       Scalar("status"),
			"Responsible":  Sub("name", "responsible"),
			"Contacted":    Scalar("contacted"),
			"Contact Date": Scalar("contact_date"),
		},
		DenyPush: []string{"contact_date"},
	}
}

// DeclinedInvites mirrors invitations the team turned down.
func DeclinedInvites() *Table {
	return &Table{
		Name:          "Declined Invites",
		LocalTable:    "declined_invites",
		IdentityField: "URL",
		Registry: NewRegistry(
			FieldSpec{Name: "title", Kind: KindString},
			FieldSpec{Name: "client_name", Kind: KindString},
			FieldSpec{Name: "reason", Kind: KindString},
			FieldSpec{Name: "declined_date", Kind: KindTime},
			FieldSpec{Name: "country", Kind: KindString},
		),
		Mapping: Mapping{
			"Title":         Scalar("title"),
			"Client Name":   Scalar("client_name"),
			"Reason":        Scalar("reason"),
			"Declined Date": Scalar("declined_date"),
			"Country":       Scalar("country"),
		},
		DenyPush: []string{"declined_date"},
	}
}

// DefaultTables returns every synchronized variant keyed by remote name.
func DefaultTables() map[string]*Table {
	tables := map[string]*Table{}
	for _, t := range []*Table{Projects(), Proposals(), Leads(), DeclinedInvites()} {
		tables[t.Name] = t
	}
	return tables
}
