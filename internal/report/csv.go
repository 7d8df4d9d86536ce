package report

import (
	"encoding/csv"
	"io"
	"time"

	"proctor-sync/internal/sync"
)

// Keep header order stable; downstream imports key on position.
var header = []string{
	"RUN_ID",
	"TIMESTAMP",
	"ENTITY",
	"REMOTE_ID",
	"OUTCOME",
	"ERROR",
}

// Row is one synchronizer call in a batch run.
type Row struct {
	RunID  string
	At     time.Time
	Result sync.Result
}

// WriteCSV writes rows in the run report format.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(toRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func toRecord(r Row) []string {
	errText := ""
	if r.Result.Err != nil {
		errText = r.Result.Err.Error()
	}
	ts := ""
	if !r.At.IsZero() {
		ts = r.At.UTC().Format(time.RFC3339)
	}
	return []string{
		r.RunID,
		ts,
		r.Result.Entity,
		r.Result.ID,
		string(r.Result.Outcome),
		errText,
	}
}
