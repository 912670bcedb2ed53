package models

// CompanyLinks holds the external identifiers resolved once per run.
// An empty string means "not found"; the resolver never returns an error
// for an unresolvable field.
type CompanyLinks struct {
	ProfessionalProfileURL string `json:"professional_profile_url"`
	StartupProfileURL      string `json:"startup_profile_url"`
	SectorIndexTicker      string `json:"sector_index_ticker"`
}

// ProfileData is the professional-network company profile. Every field is
// optional; a failed fetch yields the all-absent zero value.
type ProfileData struct {
	Name          string   `json:"name,omitempty"`
	Description   string   `json:"description,omitempty"`
	Industry      string   `json:"industry,omitempty"`
	EmployeeCount int      `json:"employee_count,omitempty"`
	Website       string   `json:"website,omitempty"`
	Specialties   []string `json:"specialties,omitempty"`
	Address       string   `json:"address,omitempty"`
}

// IsZero reports whether no field of the profile was populated.
func (p ProfileData) IsZero() bool {
	return p.Name == "" && p.Description == "" && p.Industry == "" &&
		p.EmployeeCount == 0 && p.Website == "" && len(p.Specialties) == 0 &&
		p.Address == ""
}

// StartupProfile is the startup-database record, passed through opaquely.
// The shape is controlled by the remote source.
type StartupProfile []map[string]any

// TokenUsage is the token accounting of one generative call.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Add accumulates usage from another call.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ReportInfo is the structured result of report generation.
type ReportInfo struct {
	CompanyName      string `json:"company_name" jsonschema_description:"Official name of the company"`
	WebsiteURL       string `json:"website_url" jsonschema_description:"URL of the company's official website"`
	ShortDescription string `json:"short_description" jsonschema_description:"Brief overview of the company's business and mission"`
	MarketCap        string `json:"market_cap" jsonschema_description:"Market capitalization of the company"`
	Price            string `json:"price" jsonschema_description:"Current price of the company's stock"`
	PriceChange      string `json:"price_change" jsonschema_description:"Percentage change in price over the last 24 hours"`
	Volume           string `json:"volume" jsonschema_description:"Volume of the company's stock traded in the last 24 hours"`
	VolumeChange     string `json:"volume_change" jsonschema_description:"Percentage change in volume over the last 24 hours"`
	Report           string `json:"report" jsonschema_description:"Markdown market research report for the company"`
}

// AggregatedBundle is the unified record the orchestrator assembles from the
// fetch slots. Optional members stay nil when their source never resolved or
// failed; the bundle is immutable once handed to the report writer.
type AggregatedBundle struct {
	Primary   *MarketSnapshot
	Benchmark *MarketSnapshot
	Sector    *MarketSnapshot
	Profile   *ProfileData
	Startup   StartupProfile
	Report    *ReportInfo
}
