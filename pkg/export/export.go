// Package export writes decision records for offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/parkadvisor/core/decisionlog"
)

// WriteJSON writes the records to w as a JSON array.
func WriteJSON(w io.Writer, records []decisionlog.Record) error {
	if records == nil {
		records = []decisionlog.Record{}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(records)
}

var csvHeader = []string{
	"timestamp", "decision_id", "vehicle_id", "user_id", "true_target", "true_target_rank",
	"suggested", "w_total_time", "w_walking_time", "w_prob_of_success", "reserved", "attempts",
}

// WriteCSV writes one row per record. Suggested targets are joined with '|'.
func WriteCSV(w io.Writer, records []decisionlog.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		suggested := make([]string, len(r.Suggested))
		for i, s := range r.Suggested {
			suggested[i] = string(s)
		}
		rec := []string{
			r.Timestamp.Format(time.RFC3339),
			r.DecisionID,
			r.VehicleID,
			strconv.Itoa(r.UserID),
			string(r.TrueTarget),
			strconv.Itoa(r.TrueTargetRank),
			strings.Join(suggested, "|"),
			formatFloat(r.Weights.Time),
			formatFloat(r.Weights.Walking),
			formatFloat(r.Weights.Success),
			r.Reserved,
			strconv.Itoa(len(r.Attempts)),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
