package models

import "time"

type IssueStatus string

const (
	IssueStatusOpen IssueStatus = "open"
)

// IssueReport is one row of the issues table. The pipeline creates it once
// and never updates it.
type IssueReport struct {
	ID            string      `json:"id" db:"id"`
	CaseNumber    string      `json:"caseNumber" db:"case_number"`
	UserID        string      `json:"userId" db:"user_id"`
	ReporterEmail string      `json:"reporterEmail" db:"reporter_email"`
	Description   string      `json:"description" db:"description"`
	Status        IssueStatus `json:"status" db:"status"`
	ReportedAt    time.Time   `json:"reportedAt" db:"reported_at"`
}

// IssueSearchResult is a page of indexed issue reports.
type IssueSearchResult struct {
	Total  int64         `json:"total"`
	Issues []IssueReport `json:"issues"`
}
