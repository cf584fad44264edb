package ingest

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wxdata-server/internal/modules/weather/types"
)

func TestStationFromFilename(t *testing.T) {
	tests := map[string]string{
		"USC00110072.txt":          "USC00110072",
		"/data/wx/USC00110072.txt": "USC00110072",
		"USC00110072.2014.txt":     "USC00110072",
		"USC00110072":              "USC00110072",
		"wx_data/sub.dir/ABC.tsv":  "ABC",
		".hidden":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, StationFromFilename(in), "StationFromFilename(%q)", in)
	}
}

func TestParseRecords(t *testing.T) {
	input := "19850101\t-22\t-128\t94\n" +
		"19850121\t  -44\t -200\t    0\n" +
		"\n" +
		"19850122\t-9999\t-9999\t-9999\r\n"

	got, err := ParseRecords(strings.NewReader(input), "USC00110072")
	require.NoError(t, err)

	want := []types.Record{
		{Station: "USC00110072", Date: time.Date(1985, 1, 1, 0, 0, 0, 0, time.UTC), MaxTemp: -22, MinTemp: -128, Precip: 94},
		{Station: "USC00110072", Date: time.Date(1985, 1, 21, 0, 0, 0, 0, time.UTC), MaxTemp: -44, MinTemp: -200, Precip: 0},
		{Station: "USC00110072", Date: time.Date(1985, 1, 22, 0, 0, 0, 0, time.UTC), MaxTemp: -9999, MinTemp: -9999, Precip: -9999},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseRecords mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRecords_Empty(t *testing.T) {
	got, err := ParseRecords(strings.NewReader(""), "S")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseRecords_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLine  int
		wantField string
	}{
		{"bad date", "19850101\t1\t2\t3\n1985013x\t1\t2\t3\n", 2, "date"},
		{"impossible date", "19850230\t1\t2\t3\n", 1, "date"},
		{"bad max_temp", "19850101\tabc\t2\t3\n", 1, "max_temp"},
		{"bad min_temp", "19850101\t1\t2.5\t3\n", 1, "min_temp"},
		{"empty precip", "19850101\t1\t2\t\n", 1, "precip"},
		{"out of smallint range", "19850101\t40000\t2\t3\n", 1, "max_temp"},
		{"too few fields", "19850101\t1\t2\n", 1, ""},
		{"too many fields", "19850101\t1\t2\t3\t4\n", 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecords(strings.NewReader(tt.input), "S")
			require.Error(t, err)
			assert.Nil(t, got)

			var pe *ParseError
			require.True(t, errors.As(err, &pe), "error %v is not a *ParseError", err)
			assert.Equal(t, tt.wantLine, pe.Line)
			assert.Equal(t, tt.wantField, pe.Field)
			assert.Contains(t, pe.Error(), "line "+strconv.Itoa(tt.wantLine))
		})
	}
}

func TestParseError_UnwrapsCause(t *testing.T) {
	_, err := ParseRecords(strings.NewReader("19850101\t40000\t2\t3\n"), "S")
	assert.ErrorIs(t, err, strconv.ErrRange)
}
