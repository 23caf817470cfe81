package tabular

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shappi-app/warehouse-bundles-dashboard/board"
)

// RowError is a recoverable per-row diagnostic. The offending row is skipped
// and the rest of the batch proceeds.
type RowError struct {
	Row    int // 1-based position within the batch
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Reason)
}

// ProjectRow converts one canonical row into a trip update. It fails only
// when the trip ID is missing; every other field falls back to its zero
// value. Item counts parse as base-10 integers, treat garbage and negatives
// as zero, and the ready count is clamped to the accepted count.
func ProjectRow(row map[string]any) (board.TripUpdate, error) {
	tripID := stringField(row, "Trip ID")
	if tripID == "" {
		return board.TripUpdate{}, fmt.Errorf("missing Trip ID")
	}

	accepted := intField(row, "Items Accepted")
	ready := intField(row, "Items Ready to process")
	if ready > accepted {
		ready = accepted
	}

	return board.TripUpdate{
		TripID:                 tripID,
		Traveler:               stringField(row, "Traveler"),
		USADest:                stringField(row, "USA Dest"),
		ItemsAccepted:          accepted,
		ItemsReadyToProcess:    ready,
		TotalBundleWeight:      stringField(row, "Total Bundle Weight"),
		TripVerificationStatus: stringField(row, "Trip Verification Status"),
		LatamDeparture:         stringField(row, "LATAM Departure"),
		LatamArrival:           stringField(row, "LATAM Arrival"),
		ShipBundle:             stringField(row, "Ship Bundle"),
		MaxUSADate:             stringField(row, "Max USA Date"),
	}, nil
}

// ProjectRows normalizes and projects a whole batch. A batch of N rows yields
// at most N updates plus zero or more diagnostics; one bad row never blocks
// the others.
func ProjectRows(rows []map[string]any) ([]board.TripUpdate, []RowError) {
	updates := make([]board.TripUpdate, 0, len(rows))
	var errs []RowError
	for i, raw := range rows {
		update, err := ProjectRow(NormalizeRow(raw))
		if err != nil {
			errs = append(errs, RowError{Row: i + 1, Reason: err.Error()})
			continue
		}
		updates = append(updates, update)
	}
	return updates, errs
}

// stringField coerces a row value to a trimmed string. JSON numbers and other
// scalars are rendered; absent values become "".
func stringField(row map[string]any, key string) string {
	value, ok := row[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	if f, ok := value.(float64); ok {
		// Spreadsheet ids often arrive as JSON numbers; keep whole values
		// free of a trailing ".0".
		if f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

// intField parses a base-10 count from the row. Absent, unparsable, and
// negative values all collapse to zero.
func intField(row map[string]any, key string) int {
	n, err := strconv.Atoi(stringField(row, key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
