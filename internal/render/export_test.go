package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
)

// TestFormatSRTTime verifies the SRT timestamp formatting.
// SRT format requires: HH:MM:SS,mmm (note: comma, not period)
func TestFormatSRTTime(t *testing.T) {
	tests := []struct {
		name     string
		seconds  float64
		expected string
	}{
		{"zero seconds", 0, "00:00:00,000"},
		{"fractional seconds", 1.5, "00:00:01,500"},
		{"one minute", 60, "00:01:00,000"},
		{"one hour", 3600, "01:00:00,000"},
		{"complex time", 3723.5, "01:02:03,500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatSRTTime(tt.seconds)
			if result != tt.expected {
				t.Errorf("formatSRTTime(%f) = %q, want %q", tt.seconds, result, tt.expected)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		seconds  int
		expected string
	}{
		{"zero", 0, "0s"},
		{"seconds only", 45, "45s"},
		{"minutes and seconds", 125, "2m 5s"},
		{"hours minutes seconds", 3723, "1h 2m 3s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := formatDuration(tt.seconds); result != tt.expected {
				t.Errorf("formatDuration(%d) = %q, want %q", tt.seconds, result, tt.expected)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean filename", "My Video Title", "My Video Title"},
		{"slashes and colons", "Part 1/2: The Beginning", "Part 1-2- The Beginning"},
		{"special characters", "What is Go? <A Guide>", "What is Go- -A Guide-"},
		{"empty string", "", ""},
		{"long title gets truncated", strings.Repeat("a", 200), strings.Repeat("a", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := sanitizeFilename(tt.input); result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

var created = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func transcriptGeneration() models.Generation {
	return models.Generation{
		ID:   "g1",
		Type: models.GenTranscriptAdvanced,
		Content: json.RawMessage(`{"segments":[
			{"startTime":"00:00","endTime":"00:04","transcript":"Hello there.","speakerInfo":"Host"},
			{"startTime":"00:04","endTime":"01:02:03","transcript":"Welcome, everyone."}
		]}`),
		CreatedAt: created,
		Model:     "gemini-3.1-pro-preview",
		Tokens:    models.Tokens{Input: 12000, Output: 800},
		Cost:      0.019,
	}
}

func TestExportSRT(t *testing.T) {
	f, err := Export("Intro: Go", transcriptGeneration(), FormatSRT)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	want := "1\n00:00:00,000 --> 00:00:04,000\nHello there.\n\n" +
		"2\n00:00:04,000 --> 01:02:03,000\nWelcome, everyone.\n\n"
	if string(f.Data) != want {
		t.Errorf("srt =\n%s\nwant\n%s", f.Data, want)
	}
	if f.Name != "Intro- Go-TRANSCRIPT_ADVANCED-20260504-093000.srt" {
		t.Errorf("Name = %q", f.Name)
	}
	if f.ContentType != "text/srt; charset=utf-8" {
		t.Errorf("ContentType = %q", f.ContentType)
	}
}

func TestExportSRTRequiresTranscript(t *testing.T) {
	gen := models.Generation{ID: "g", Type: models.GenDescription, Content: json.RawMessage(`"text"`)}
	if _, err := Export("", gen, FormatSRT); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := Export("", gen, "pdf"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExportCSV(t *testing.T) {
	gen := models.Generation{
		ID:      "q",
		Type:    models.GenQuiz,
		Content: json.RawMessage(`{"questions":[{"id":1,"question":"Pick, one","options":["A","B"],"correctAnswer":"A"}]}`),
	}
	f, err := Export("", gen, FormatCSV)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(f.Data)).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0][2] != "question" || records[1][2] != "Pick, one" || records[1][3] != "A | B" {
		t.Errorf("records = %q", records)
	}
}

func TestExportJSONText(t *testing.T) {
	gen := models.Generation{ID: "d", Type: models.GenDescription, Content: json.RawMessage(`"A summary."`)}
	f, err := Export("", gen, FormatJSON)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var got []map[string]string
	if err := json.Unmarshal(f.Data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0]["content"] != "A summary." {
		t.Errorf("json export = %s", f.Data)
	}
}

func TestExportXLSX(t *testing.T) {
	f, err := Export("", transcriptGeneration(), FormatXLSX)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	book, err := excelize.OpenReader(bytes.NewReader(f.Data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer book.Close()

	rows, err := book.GetRows("Sheet1")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	if rows[0][0] != "startTime" || rows[2][2] != "Welcome, everyone." {
		t.Errorf("rows = %q", rows)
	}
}

func TestExportMarkdown(t *testing.T) {
	f, err := Export("Go Talk", transcriptGeneration(), FormatMD)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	md := string(f.Data)
	for _, want := range []string{"# Go Talk", "| Tokens | 12,000 in / 800 out |", "| Span | 1h 2m 3s |", "- `00:00` **Host:** Hello there."} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestExportCosts(t *testing.T) {
	entries := []models.CostEntry{
		{ProjectName: "A", Type: models.GenQuiz, Model: "pro", Tokens: models.Tokens{Input: 10, Output: 20}, Cost: 0.5, Timestamp: created},
		{ProjectName: "B", Type: models.GenDescription, Model: "flash", Cost: 0.25, Timestamp: created},
	}

	f, err := ExportCosts(entries, 80, FormatCSV)
	if err != nil {
		t.Fatalf("ExportCosts: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(f.Data)).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if got := records[0]; got[6] != "cost_usd" || got[7] != "cost_inr" {
		t.Errorf("header = %q", got)
	}
	if got := records[1]; got[0] != "2026-05-04 09:30:00" || got[6] != "0.5" || got[7] != "40" {
		t.Errorf("first row = %q", got)
	}
	if f.Name != "tubeboard-costs.csv" {
		t.Errorf("Name = %q", f.Name)
	}

	if _, err := ExportCosts(entries, 80, FormatSRT); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("srt cost export error = %v", err)
	}
}
