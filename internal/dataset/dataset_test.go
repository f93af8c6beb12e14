package dataset

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"ccdash/internal/core"
	"ccdash/internal/sources/memory"
)

const sampleCSV = "\uFEFFamt, gender,age,state,merch_lat,merch_long,category,is_fraud,trans_date_trans_time\n" +
	"12.5,F,34,CA,36.1,-119.7,grocery_pos,1,2019-01-01 00:00:18\n" +
	"49.99,M,not-a-number,NY,40.7,-74.0,shopping_net,0,garbage\n" +
	"-3,M,-1,TX,,,misc_net,true,2019-01-02 13:45\n" +
	",,,,,,,,\n" +
	"7,F,61,FL\n"

func load(t *testing.T) (*core.Dataset, Report) {
	t.Helper()
	src, err := memory.FromCSV(sampleCSV)
	if err != nil {
		t.Fatal(err)
	}
	ds, report, err := Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return ds, report
}

func TestLoadCoercesValues(t *testing.T) {
	ds, report := load(t)
	rows := ds.Rows()

	if len(rows) != 4 {
		t.Fatalf("blank rows must be skipped, got %d rows", len(rows))
	}
	if report.TimestampColumn != core.ColTimestampRaw {
		t.Errorf("timestamp column = %q", report.TimestampColumn)
	}
	if !ds.Has(core.ColAmount) || !ds.Has(core.ColGender) {
		t.Errorf("header must be trimmed and BOM stripped: %v", ds.Columns())
	}

	first := rows[0]
	if first.Amount != 12.5 || first.Age != 34 || !first.IsFraud || !first.HasLocation() {
		t.Errorf("unexpected first row: %+v", first)
	}
	want := time.Date(2019, 1, 1, 0, 0, 18, 0, time.UTC)
	if !first.Time.Valid || !first.Time.Equal(want) {
		t.Errorf("timestamp = %+v, want %v", first.Time, want)
	}

	if !math.IsNaN(rows[1].Age) || rows[1].Time.Valid || rows[1].IsFraud {
		t.Errorf("bad values must become missing: %+v", rows[1])
	}
	if !math.IsNaN(rows[2].Amount) || !math.IsNaN(rows[2].Age) || rows[2].HasLocation() {
		t.Errorf("negative values and blanks must become missing: %+v", rows[2])
	}
	if !rows[2].Time.Valid || rows[2].Time.Hour() != 13 {
		t.Errorf("short layout not parsed: %+v", rows[2].Time)
	}
	if rows[3].Category != "" || rows[3].Time.Valid {
		t.Errorf("short rows must pad with missing values: %+v", rows[3])
	}

	if report.InvalidTimestamps != 1 || report.InvalidNumbers != 1 || report.NegativeValues != 2 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestPreferredTimestampColumn(t *testing.T) {
	ds, report, err := Parse([][]string{
		{"amt", "gender", "age", "state", "trans_datetime", "trans_date_trans_time"},
		{"1", "F", "30", "CA", "2020-06-21 10:00:00", "garbage"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.TimestampColumn != core.ColTimestamp || !ds.Rows()[0].Time.Valid {
		t.Fatalf("trans_datetime must win: %+v", report)
	}
}

func TestMissingRequiredColumn(t *testing.T) {
	_, _, err := Parse([][]string{{"amt", "gender", "state"}, {"1", "F", "CA"}})
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if err.Error() != "missing required column: age" {
		t.Fatalf("unexpected message %q", err)
	}
}

func TestEmptyInput(t *testing.T) {
	if _, _, err := Parse(nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestLoadPropagatesNotFound(t *testing.T) {
	_, _, err := Load(context.Background(), &memory.Store{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"2019-01-01 00:00:18", true},
		{"2019-01-01T00:00:18Z", true},
		{"2019-01-01", true},
		{"01/31/2019 23:59", true},
		{"", false},
		{"yesterday", false},
	}
	for _, tt := range tests {
		if _, ok := ParseTimestamp(tt.in); ok != tt.valid {
			t.Errorf("ParseTimestamp(%q) valid = %v, want %v", tt.in, ok, tt.valid)
		}
	}
}
