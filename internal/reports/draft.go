package reports

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const unknownOfficer = "N/A"

var errMissingIDProvider = errors.New("reports: id provider is required")

// Draft is the submission form content before the report is stamped.
type Draft struct {
	ID           string `json:"id"`
	AssignmentNo string `json:"noPenugasan"`
	Unit         string `json:"ulp"`
	Officer1     string `json:"petugas1"`
	Officer2     string `json:"petugas2"`
	Feeder       string `json:"penyulang"`
	Keypoint     string `json:"keypoint"`
	StartPoint   string `json:"titikStart"`
	EndPoint     string `json:"titikFinish"`
	Photos       Photos `json:"photos"`
}

// IsEdit reports whether the draft edits an existing report.
func (d Draft) IsEdit() bool {
	return strings.TrimSpace(d.ID) != ""
}

// Build stamps the draft into a Report: a new id unless the draft edits an existing report, the
// submission time as timestamp and its month name.
func (d Draft) Build(ids IDProvider, now time.Time, loc *time.Location) (Report, error) {
	unit := strings.TrimSpace(d.Unit)
	if unit == "" {
		return Report{}, ErrMissingUnit
	}

	var id ReportID
	if d.IsEdit() {
		parsed, err := NewReportID(d.ID)
		if err != nil {
			return Report{}, err
		}
		id = parsed
	} else {
		if ids == nil {
			return Report{}, errMissingIDProvider
		}
		raw, err := ids.NewID()
		if err != nil {
			return Report{}, fmt.Errorf("reports: generate id: %w", err)
		}
		parsed, err := NewReportID(raw)
		if err != nil {
			return Report{}, err
		}
		id = parsed
	}

	return Report{
		ID:           id,
		Timestamp:    now.UTC(),
		Month:        MonthName(now, loc),
		AssignmentNo: strings.TrimSpace(d.AssignmentNo),
		Unit:         unit,
		Officer1:     officerOrUnknown(d.Officer1),
		Officer2:     officerOrUnknown(d.Officer2),
		Feeder:       strings.TrimSpace(d.Feeder),
		Keypoint:     strings.TrimSpace(d.Keypoint),
		StartPoint:   strings.TrimSpace(d.StartPoint),
		EndPoint:     strings.TrimSpace(d.EndPoint),
		Photos:       d.Photos,
	}, nil
}

func officerOrUnknown(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return unknownOfficer
	}
	return trimmed
}
