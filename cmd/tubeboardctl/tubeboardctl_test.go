package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
)

func TestRenderTable(t *testing.T) {
	headers := []string{"Project", "Cost"}
	rows := [][]string{{"Lecture 3", "$0.000150"}, {"Short"}}

	csv := renderTable(headers, rows, []columnAlignment{alignLeft, alignRight}, []string{"Total", "$1"}, false)
	if !strings.Contains(csv, "Lecture 3,$0.000150") || strings.Contains(csv, "╭") {
		t.Errorf("csv output = %q", csv)
	}
	if strings.Contains(strings.ToUpper(csv), "TOTAL") {
		t.Error("csv output should not carry the footer")
	}

	pretty := renderTable(headers, rows, nil, []string{"Total", "$1"}, true)
	if !strings.Contains(pretty, "╭") || !strings.Contains(strings.ToUpper(pretty), "TOTAL") {
		t.Errorf("pretty table missing border or footer:\n%s", pretty)
	}

	if got := renderTable(nil, rows, nil, nil, true); got != "" {
		t.Errorf("no headers should render nothing, got %q", got)
	}
}

func TestCostRows(t *testing.T) {
	entries := []models.CostEntry{{
		ProjectName: "Lecture",
		Type:        models.GenQuiz,
		Model:       "gemini-2.5-flash-latest",
		Tokens:      models.Tokens{Input: 1_250_000, Output: 3400},
		Cost:        0.5,
		Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}

	rows := costRows(entries, 80)
	if len(rows) != 1 || len(rows[0]) != 7 {
		t.Fatalf("rows = %v", rows)
	}
	if rows[0][4] != "1,250,000" || rows[0][5] != "3,400" {
		t.Errorf("tokens = %q / %q", rows[0][4], rows[0][5])
	}
	if rows[0][6] != "$0.500000 (₹40.00)" {
		t.Errorf("cost = %q", rows[0][6])
	}
}

func TestHashPasswordCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		wantErr bool
	}{
		{"argument", []string{"hash-password", "hunter2"}, "", false},
		{"stdin", []string{"hash-password"}, "hunter2\n", false},
		{"empty stdin", []string{"hash-password"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cmd := newRootCommand()
			cmd.SetArgs(tt.args)
			cmd.SetIn(strings.NewReader(tt.stdin))
			cmd.SetOut(&out)

			err := cmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			hash := strings.TrimSpace(out.String())
			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")); err != nil {
				t.Errorf("hash does not match: %v", err)
			}
		})
	}
}
