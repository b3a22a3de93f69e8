package farm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/prite36/farm-monitor/internal/models"
)

const (
	ImportEventWater   = "water"
	ImportEventProblem = "problem"
)

// ImportRecord is one entry of an import payload.
type ImportRecord struct {
	Field   string `json:"field"`
	Species string `json:"plantType"`
	Date    string `json:"date"`
	Event   string `json:"event,omitempty"`
}

type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ParseImportJSON decodes an import payload. Anything other than a JSON array
// fails with ErrImportParse; array elements that do not decode into a record
// are kept as empty records so ImportBatch skips them.
func ParseImportJSON(data []byte) ([]ImportRecord, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportParse, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected an array of records", ErrImportParse)
	}

	records := make([]ImportRecord, len(raw))
	for i, msg := range raw {
		var rec ImportRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			log.Printf("[WARN] Import record %d is malformed: %v", i, err)
			continue
		}
		records[i] = rec
	}
	return records, nil
}

// ParseImportDate accepts a calendar date or an RFC 3339 timestamp and returns it in UTC.
func ParseImportDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// ImportJSON parses payload and applies it. A parse failure leaves the registry untouched.
func (r *Registry) ImportJSON(ctx context.Context, payload []byte) (ImportResult, error) {
	records, err := ParseImportJSON(payload)
	if err != nil {
		return ImportResult{}, err
	}
	return r.ImportBatch(ctx, records)
}

// ImportBatch applies records one by one. Records without a field, species or
// usable date are skipped; every other record counts as imported whichever
// branch it takes.
func (r *Registry) ImportBatch(ctx context.Context, records []ImportRecord) (ImportResult, error) {
	var res ImportResult
	err := r.mutate(ctx, func(now time.Time) []models.EventEntry {
		var out []models.EventEntry
		for _, rec := range records {
			field := strings.TrimSpace(rec.Field)
			species := strings.TrimSpace(rec.Species)
			date, ok := ParseImportDate(strings.TrimSpace(rec.Date))
			if field == "" || species == "" || !ok || date.After(now) {
				res.Skipped++
				continue
			}
			res.Imported++

			event := strings.ToLower(strings.TrimSpace(rec.Event))
			p := r.findPair(field, species)
			switch {
			case p == nil:
				status := models.StatusOK
				if event == ImportEventProblem {
					status = models.StatusProblem
				}
				p = r.insert(field, species, r.importCycleDays, status, date)
				out = append(out, r.log.Append(p.ID, models.EventAdded, models.Details{
					"source": "import",
					"date":   rec.Date,
				}))
			case event == ImportEventProblem:
				p.Status = models.StatusProblem
				out = append(out, r.log.Append(p.ID, models.EventProblemReported, models.Details{
					"source": "import",
					"date":   rec.Date,
				}))
			case event == ImportEventWater:
				out = append(out, r.water(p, date, models.Details{
					"source": "import",
					"date":   rec.Date,
				}))
			}
		}
		return out
	})

	log.Printf("[INFO] Import finished: %d imported, %d skipped", res.Imported, res.Skipped)
	return res, err
}
