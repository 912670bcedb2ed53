package models

// RunInput is the CLI/API input of one pipeline run.
type RunInput struct {
	CompanyTicker string `json:"company_ticker" validate:"required,min=1,max=12"`
	PastDays      int    `json:"past_days" default:"30" validate:"gte=1,lte=365"`
}

// RunRecord is the record pushed to the output sink after a successful run.
// The primary snapshot fields are flattened to the top level; the comparison
// and profile sub-records are attached only when their slot was filled.
type RunRecord struct {
	MarketSnapshot
	Report      string          `json:"report"`
	SP500Data   *MarketSnapshot `json:"sp500_data,omitempty"`
	SectorData  *MarketSnapshot `json:"sector_data,omitempty"`
	ProfileData *ProfileData    `json:"profile_data,omitempty"`
	StartupData StartupProfile  `json:"startup_data,omitempty"`
}
