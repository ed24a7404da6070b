package models

// SummaryRecordModel persists successful generations for admin inspection.
// Hash is the cache fingerprint (host + product key + lang).
type SummaryRecordModel struct {
	Base
	Hash       string `json:"hash"        gorm:"uniqueIndex;not null"`
	Summary    string `json:"summary"     gorm:"type:text;not null"`
	Host       string `json:"host"        gorm:"index;not null"`
	ProductKey string `json:"product_key" gorm:"index;not null"`
	Lang       string `json:"lang"        gorm:"default:'en'"`
	APIUsed    string `json:"api_used"`
	TTFBMs     int64  `json:"ttfb_ms"`
	DurationMs int64  `json:"duration_ms"`
}

func (SummaryRecordModel) TableName() string { return "summary_records" }
