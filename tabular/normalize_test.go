package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Trip ID", "Trip ID"},
		{"trip_id", "Trip ID"},
		{"TRIP  ID", "Trip ID"},
		{"\ufeffTrip ID", "Trip ID"},
		{"  tripid  ", "Trip ID"},
		{"Traveller", "Traveler"},
		{"USA Destination", "USA Dest"},
		{"items ready", "Items Ready to process"},
		{"Items Ready to process", "Items Ready to process"},
		{"Notes From Warehouse", "Notes From Warehouse"},
		{"  custom column  ", "custom column"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.raw))
		})
	}
}

func TestNormalizeKeyIsIdempotent(t *testing.T) {
	inputs := []string{"trip_id", "\ufeffTraveller", "USA  Destination", "Notes", "  Ship Bundle "}
	for _, raw := range inputs {
		once := NormalizeKey(raw)
		assert.Equal(t, once, NormalizeKey(once), "normalizing %q twice diverged", raw)
	}
}

func TestNormalizeRow(t *testing.T) {
	row := map[string]any{
		"trip_id":     " T1 ",
		"Traveller":   "Ana",
		"stale":       nil,
		"":            "dropped",
		"Items Ready": float64(3),
	}

	got := NormalizeRow(row)

	assert.Equal(t, map[string]any{
		"Trip ID":                "T1",
		"Traveler":               "Ana",
		"Items Ready to process": float64(3),
	}, got)
}

func TestNormalizeRowsKeepsOrderAndLength(t *testing.T) {
	rows := []map[string]any{
		{"trip_id": "T1"},
		{"trip_id": "T2"},
	}
	got := NormalizeRows(rows)
	assert.Len(t, got, 2)
	assert.Equal(t, "T1", got[0]["Trip ID"])
	assert.Equal(t, "T2", got[1]["Trip ID"])
}
