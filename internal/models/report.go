package models

import "time"

// Report is the persisted row of a bug report. List columns (steps, stances,
// notes, attachments) hold JSON text; see report.EncodeEntries.
type Report struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	ReporterID       string `gorm:"size:32;not null;index"`
	BoardID          string `gorm:"size:32;not null;index"`
	MessageID        string `gorm:"size:32"`
	ShortDescription string `gorm:"type:text"`
	StepsToReproduce string `gorm:"type:text"`
	ExpectedResult   string `gorm:"type:text"`
	ActualResult     string `gorm:"type:text"`
	SoftwareVersion  string `gorm:"type:text"`
	Approves         string `gorm:"type:text"`
	Denies           string `gorm:"type:text"`
	Notes            string `gorm:"type:text"`
	Attachments      string `gorm:"type:text"`
	IssueURL         *string
	IssueID          *int
	Stance           int  `gorm:"default:0;index"`
	Locked           bool `gorm:"default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName keeps the table name used by existing deployments.
func (Report) TableName() string { return "bug_reports" }
