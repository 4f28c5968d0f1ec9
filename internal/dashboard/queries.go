package dashboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/Jack-Gledhill/bugbot/internal/models"
	"github.com/Jack-Gledhill/bugbot/internal/report"
	"gorm.io/gorm"
)

type stanceView struct {
	Reviewer string `json:"reviewer"`
	Text     string `json:"text"`
}

type entryView struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

type issueView struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

// reportView is the JSON shape of a report.
type reportView struct {
	ID          int64        `json:"id"`
	State       string       `json:"state"`
	Locked      bool         `json:"locked"`
	ReporterID  string       `json:"reporter_id"`
	BoardID     string       `json:"board_id"`
	Short       string       `json:"short"`
	Steps       []string     `json:"steps"`
	Expected    string       `json:"expected"`
	Actual      string       `json:"actual"`
	Software    string       `json:"software"`
	Approvals   []stanceView `json:"approvals"`
	Denials     []stanceView `json:"denials"`
	Attachments []entryView  `json:"attachments"`
	Notes       []entryView  `json:"notes"`
	Issue       *issueView   `json:"issue,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

func newReportView(r *report.Report) reportView {
	v := reportView{
		ID:          r.ID,
		State:       r.State.String(),
		Locked:      r.Locked,
		ReporterID:  r.ReporterID,
		BoardID:     r.BoardID,
		Short:       r.Short,
		Steps:       r.Steps,
		Expected:    r.Expected,
		Actual:      r.Actual,
		Software:    r.Software,
		Approvals:   stanceViews(r.Approvals()),
		Denials:     stanceViews(r.Denials()),
		Attachments: entryViews(r.Attachments),
		Notes:       entryViews(r.Notes),
		CreatedAt:   r.CreatedAt,
	}
	if v.Steps == nil {
		v.Steps = []string{}
	}
	if r.Issue != nil {
		v.Issue = &issueView{ID: r.Issue.ID, URL: r.Issue.URL}
	}
	return v
}

func stanceViews(stances []report.Stance) []stanceView {
	out := make([]stanceView, len(stances))
	for i, s := range stances {
		out[i] = stanceView{Reviewer: s.Reviewer, Text: s.Text}
	}
	return out
}

func entryViews(entries []report.Entry) []entryView {
	out := make([]entryView, len(entries))
	for i, e := range entries {
		out[i] = entryView{Author: e.Author, Content: e.Content}
	}
	return out
}

// BoardCount holds report counts by state for a single board.
type BoardCount struct {
	BoardID  string `json:"board_id"`
	Open     int    `json:"open"`
	Approved int    `json:"approved"`
	Denied   int    `json:"denied"`
	Total    int    `json:"total"`
}

// Stats summarises the whole queue.
type Stats struct {
	Open       int          `json:"open"`
	Approved   int          `json:"approved"`
	Denied     int          `json:"denied"`
	Locked     int          `json:"locked"`
	Total      int          `json:"total"`
	OldestOpen *time.Time   `json:"oldest_open,omitempty"`
	Boards     []BoardCount `json:"boards"`
}

// QueueStats returns per-state and per-board report counts.
func QueueStats(db *gorm.DB) (*Stats, error) {
	type row struct {
		BoardID string
		Stance  int
		Count   int
	}
	var rows []row
	if err := db.Model(&models.Report{}).
		Select("board_id, stance, count(*) as count").
		Group("board_id, stance").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("dashboard: stats: %w", err)
	}

	stats := &Stats{Boards: []BoardCount{}}
	boards := make(map[string]*BoardCount)
	for _, r := range rows {
		bc, ok := boards[r.BoardID]
		if !ok {
			bc = &BoardCount{BoardID: r.BoardID}
			boards[r.BoardID] = bc
		}
		switch report.State(r.Stance) {
		case report.Open:
			bc.Open += r.Count
			stats.Open += r.Count
		case report.Approved:
			bc.Approved += r.Count
			stats.Approved += r.Count
		case report.Denied:
			bc.Denied += r.Count
			stats.Denied += r.Count
		}
		bc.Total += r.Count
		stats.Total += r.Count
	}
	for _, bc := range boards {
		stats.Boards = append(stats.Boards, *bc)
	}
	sort.Slice(stats.Boards, func(i, j int) bool { return stats.Boards[i].BoardID < stats.Boards[j].BoardID })

	var locked int64
	if err := db.Model(&models.Report{}).
		Where("stance = ? AND locked = ?", int(report.Open), true).
		Count(&locked).Error; err != nil {
		return nil, fmt.Errorf("dashboard: stats: %w", err)
	}
	stats.Locked = int(locked)

	var oldest models.Report
	err := db.Where("stance = ?", int(report.Open)).Order("created_at ASC").Limit(1).Find(&oldest).Error
	if err != nil {
		return nil, fmt.Errorf("dashboard: stats: %w", err)
	}
	if oldest.ID != 0 {
		t := oldest.CreatedAt
		stats.OldestOpen = &t
	}
	return stats, nil
}
