package reports

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PhotoSlots is the number of before/after photo positions on a report.
const PhotoSlots = 6

const maxIdentifierLength = 190

var (
	// ErrInvalidReportID indicates that a report identifier is empty or exceeds storage bounds.
	ErrInvalidReportID = errors.New("reports: invalid report id")
	// ErrInvalidTimestamp indicates that a report carries no usable timestamp.
	ErrInvalidTimestamp = errors.New("reports: invalid timestamp")
	// ErrMissingUnit indicates that a report draft has no unit.
	ErrMissingUnit = errors.New("reports: unit is required")
)

// ReportID represents a validated report identifier.
type ReportID string

// NewReportID validates raw input and returns a ReportID.
func NewReportID(rawInput string) (ReportID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidReportID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidReportID, maxIdentifierLength)
	}
	return ReportID(trimmed), nil
}

// String returns the underlying string identifier.
func (id ReportID) String() string {
	return string(id)
}

// Photos holds the before and after documentation slots. A nil slot is empty; a set slot is either
// inline-encoded image data or a remote URL.
type Photos struct {
	Before [PhotoSlots]*string `json:"sebelum"`
	After  [PhotoSlots]*string `json:"sesudah"`
}

// Report is one patrol inspection record. JSON names follow the spreadsheet schema.
type Report struct {
	ID           ReportID  `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Month        string    `json:"bulan"`
	AssignmentNo string    `json:"noPenugasan"`
	Unit         string    `json:"ulp"`
	Officer1     string    `json:"petugas1"`
	Officer2     string    `json:"petugas2"`
	Feeder       string    `json:"penyulang"`
	Keypoint     string    `json:"keypoint"`
	StartPoint   string    `json:"titikStart"`
	EndPoint     string    `json:"titikFinish"`
	Photos       Photos    `json:"photos"`
}

// Validate reports whether the record can take part in reconciliation.
func (r Report) Validate() error {
	if _, err := NewReportID(r.ID.String()); err != nil {
		return err
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: report %s", ErrInvalidTimestamp, r.ID)
	}
	return nil
}

// LocalDate returns the report's calendar date in loc as YYYY-MM-DD.
func (r Report) LocalDate(loc *time.Location) string {
	return r.Timestamp.In(locationOrUTC(loc)).Format(DateLayout)
}

// DateLayout is the calendar date format used by view filters.
const DateLayout = "2006-01-02"

// MonthNames are the Indonesian month names stored in the `bulan` column.
var MonthNames = [12]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// MonthName returns the Indonesian month name for t in loc.
func MonthName(t time.Time, loc *time.Location) string {
	return MonthNames[t.In(locationOrUTC(loc)).Month()-1]
}

func locationOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
