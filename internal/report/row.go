package report

import (
	"fmt"

	"github.com/Jack-Gledhill/bugbot/internal/models"
)

// FromRow builds a Report from its stored row, rejecting rows that cannot
// be decoded or carry an unknown stance code.
func FromRow(row *models.Report) (*Report, error) {
	if row == nil {
		return nil, fmt.Errorf("report: nil row")
	}
	state := State(row.Stance)
	switch state {
	case Open, Approved, Denied:
	default:
		return nil, fmt.Errorf("report: #%d: unknown stance code %d", row.ID, row.Stance)
	}

	steps, err := DecodeSteps(row.StepsToReproduce)
	if err != nil {
		return nil, fmt.Errorf("report: #%d: steps: %w", row.ID, err)
	}
	approves, err := decodeStances(row.Approves, Approve)
	if err != nil {
		return nil, fmt.Errorf("report: #%d: approves: %w", row.ID, err)
	}
	denies, err := decodeStances(row.Denies, Deny)
	if err != nil {
		return nil, fmt.Errorf("report: #%d: denies: %w", row.ID, err)
	}
	attachments, err := DecodeEntries(row.Attachments)
	if err != nil {
		return nil, fmt.Errorf("report: #%d: attachments: %w", row.ID, err)
	}
	notes, err := DecodeEntries(row.Notes)
	if err != nil {
		return nil, fmt.Errorf("report: #%d: notes: %w", row.ID, err)
	}

	r := &Report{
		ID:          row.ID,
		ReporterID:  row.ReporterID,
		BoardID:     row.BoardID,
		MessageID:   row.MessageID,
		CreatedAt:   row.CreatedAt,
		Short:       row.ShortDescription,
		Steps:       steps,
		Expected:    row.ExpectedResult,
		Actual:      row.ActualResult,
		Software:    row.SoftwareVersion,
		Locked:      row.Locked,
		State:       state,
		Attachments: attachments,
		Notes:       notes,
	}
	for _, s := range append(approves, denies...) {
		if _, dup := r.ledger.Submit(s); dup {
			return nil, fmt.Errorf("report: #%d: reviewer %s holds more than one stance", row.ID, s.Reviewer)
		}
	}
	if row.IssueID != nil || row.IssueURL != nil {
		r.Issue = &Issue{}
		if row.IssueID != nil {
			r.Issue.ID = *row.IssueID
		}
		if row.IssueURL != nil {
			r.Issue.URL = *row.IssueURL
		}
	}
	return r, nil
}

// ToRow encodes r into a storage row.
func (r *Report) ToRow() (*models.Report, error) {
	steps, err := EncodeSteps(r.Steps)
	if err != nil {
		return nil, err
	}
	approves, err := encodeStances(r.ledger.Bucket(Approve))
	if err != nil {
		return nil, err
	}
	denies, err := encodeStances(r.ledger.Bucket(Deny))
	if err != nil {
		return nil, err
	}
	attachments, err := EncodeEntries(r.Attachments)
	if err != nil {
		return nil, err
	}
	notes, err := EncodeEntries(r.Notes)
	if err != nil {
		return nil, err
	}

	row := &models.Report{
		ID:               r.ID,
		ReporterID:       r.ReporterID,
		BoardID:          r.BoardID,
		MessageID:        r.MessageID,
		ShortDescription: r.Short,
		StepsToReproduce: steps,
		ExpectedResult:   r.Expected,
		ActualResult:     r.Actual,
		SoftwareVersion:  r.Software,
		Approves:         approves,
		Denies:           denies,
		Notes:            notes,
		Attachments:      attachments,
		Stance:           int(r.State),
		Locked:           r.Locked,
		CreatedAt:        r.CreatedAt,
	}
	if r.Issue != nil {
		id, url := r.Issue.ID, r.Issue.URL
		row.IssueID = &id
		row.IssueURL = &url
	}
	return row, nil
}
