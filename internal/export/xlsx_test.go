package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/healthlog/healthlog/internal/models"
	"github.com/healthlog/healthlog/internal/record"
	"github.com/healthlog/healthlog/internal/report"
)

func TestRecords_WorkbookLayout(t *testing.T) {
	fields := []models.FieldDefinition{
		{ID: 1, Name: "weight", DataType: models.DataTypeNumber, Unit: "kg"},
		{ID: 2, Name: "mood", DataType: models.DataTypeEnum},
	}
	records := []record.FlatRecord{
		{RecordID: 10, RecordDate: "2024-03-02", CreatedAt: time.Now(),
			FieldValues: map[string]string{"weight": "72.5", "mood": "A"}},
		{RecordID: 11, RecordDate: "2024-03-01", CreatedAt: time.Now(),
			FieldValues: map[string]string{"mood": "B"}},
	}

	data, err := Records(records, fields)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Records")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Date", "weight (kg)", "mood"}, rows[0])
	assert.Equal(t, []string{"2024-03-02", "72.5", "A"}, rows[1])
	// Absent weight leaves the cell blank.
	assert.Equal(t, "2024-03-01", rows[2][0])
	assert.Equal(t, "B", rows[2][2])
}

func TestRecords_EmptyStillHasHeader(t *testing.T) {
	data, err := Records(nil, []models.FieldDefinition{{ID: 1, Name: "weight"}})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Records")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Date", rows[0][0])
}

func TestNumberReport_IncludesStatisticsBlock(t *testing.T) {
	avg, med := 70.0, 70.0
	rep := &report.NumberReport{
		Trend: []report.TrendPoint{
			{Date: "2024-03-01", Value: "60"},
			{Date: "2024-03-03", Value: "80"},
		},
		Statistics: report.NumberStatistics{
			Average: &avg,
			Median:  &med,
			Count:   2,
		},
	}

	data, err := NumberReport("weight", rep)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Report")
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "weight"}, rows[0])
	assert.Equal(t, []string{"2024-03-01", "60"}, rows[1])

	labels := make(map[string]bool)
	for _, row := range rows {
		if len(row) > 0 {
			labels[row[0]] = true
		}
	}
	assert.True(t, labels["Count"])
	assert.True(t, labels["Average"])
	assert.True(t, labels["Median"])
	// Absent statistics still get their label row with a blank value.
	assert.True(t, labels["Max"])
}
