package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aisHeader = "MMSI,BaseDateTime,LAT,LON,SOG,COG,VesselName,IMO,Length,TransceiverClass\n"

func TestParseCSV(t *testing.T) {
	t.Run("sorts by BaseDateTime and keeps passthrough columns", func(t *testing.T) {
		data := aisHeader +
			"367000001,2020-01-01T00:10:00,29.1,-94.5,10.2,90.0,ALPHA,IMO1234567,120,A\n" +
			"367000002,2020-01-01T00:00:00,29.2,-94.6,0.1,,BRAVO,,,B\n"

		table, err := ParseCSV(strings.NewReader(data))
		require.NoError(t, err)

		assert.Equal(t, []string{"MMSI", "BaseDateTime", "LAT", "LON", "SOG", "COG", "VesselName", "IMO", "Length", "TransceiverClass"}, table.Columns)
		require.Equal(t, 2, table.Len())

		first := table.Rows[0]
		assert.Equal(t, "BRAVO", first.VesselName())
		assert.Equal(t, 2, first.Row)
		assert.Nil(t, first.Length)
		assert.Equal(t, "B", first.Fields["TransceiverClass"])

		second := table.Rows[1]
		assert.Equal(t, "ALPHA", second.VesselName())
		assert.Equal(t, "IMO1234567", second.IMO())
		assert.Equal(t, "367000001", second.MMSI())
		require.NotNil(t, second.Length)
		assert.Equal(t, 120.0, *second.Length)
	})

	t.Run("strips byte order mark from header", func(t *testing.T) {
		data := "\ufeff" + aisHeader + "1,2020-01-01T00:00:00,1,1,1,1,A,IMO1,10,A\n"
		table, err := ParseCSV(strings.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "MMSI", table.Columns[0])
	})

	t.Run("non-numeric length is unknown", func(t *testing.T) {
		data := aisHeader + "1,2020-01-01T00:00:00,1,1,1,1,A,IMO1,n/a,A\n"
		table, err := ParseCSV(strings.NewReader(data))
		require.NoError(t, err)
		assert.Nil(t, table.Rows[0].Length)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader(""))
		require.ErrorIs(t, err, ErrEmptyCSV)
	})

	t.Run("header only", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader(aisHeader))
		require.ErrorIs(t, err, ErrEmptyCSV)
	})

	t.Run("missing required columns", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader("MMSI,LAT\n1,2\n"))
		require.ErrorIs(t, err, ErrMissingColumns)
		assert.Contains(t, err.Error(), "BaseDateTime")
		assert.Contains(t, err.Error(), "LON")
		assert.NotContains(t, err.Error(), "LAT,")
	})

	t.Run("ragged row", func(t *testing.T) {
		data := aisHeader + "1,2020-01-01T00:00:00,1\n"
		_, err := ParseCSV(strings.NewReader(data))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read csv row 1")
	})
}
