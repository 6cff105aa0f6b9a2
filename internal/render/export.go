package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
	"github.com/Shimizu-Technology/tubeboard-api/internal/pricing"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatMD   = "md"
	FormatSRT  = "srt"
	FormatTXT  = "txt"
)

// ErrUnsupportedFormat is returned for a format that does not apply to the
// content being exported.
var ErrUnsupportedFormat = errors.New("unsupported export format")

var contentTypes = map[string]string{
	FormatJSON: "application/json; charset=utf-8",
	FormatCSV:  "text/csv; charset=utf-8",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatMD:   "text/markdown; charset=utf-8",
	FormatSRT:  "text/srt; charset=utf-8",
	FormatTXT:  "text/plain; charset=utf-8",
}

// File is a ready-to-download export.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// table is a header row plus typed cells. Numbers stay numbers so the xlsx
// writer can store them as numeric cells.
type table struct {
	header []string
	rows   [][]any
}

// Export renders a generation in the requested format.
//
// Go Pattern: Each export format is its own function, selected by a switch.
// The tabular formats (csv, xlsx) share one table built per layout.
func Export(projectName string, gen models.Generation, format string) (*File, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	view := Build(gen)

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(exportRecords(view), "", "  ")
	case FormatCSV:
		data, err = writeCSV(viewTable(view))
	case FormatXLSX:
		data, err = writeXLSX(viewTable(view))
	case FormatMD:
		data = []byte(markdown(projectName, gen, view))
	case FormatTXT:
		data = []byte(plainText(view))
	case FormatSRT:
		if view.Kind != KindTranscript {
			return nil, fmt.Errorf("%w: srt requires a time-coded transcript", ErrUnsupportedFormat)
		}
		data = []byte(subRip(view.Segments))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build %s export: %w", format, err)
	}

	return &File{
		Name:        exportName(projectName, gen) + "." + format,
		ContentType: contentTypes[format],
		Data:        data,
	}, nil
}

// exportRecords is the list exported as JSON: the rows of a structured view
// or a single {content} record for text.
func exportRecords(v View) any {
	switch v.Kind {
	case KindTranscript:
		return v.Segments
	case KindScenes:
		return v.Scenes
	case KindQuiz:
		return v.Questions
	case KindFlashcards:
		return v.Flashcards
	default:
		return []map[string]string{{"content": v.Text}}
	}
}

func viewTable(v View) table {
	var t table
	switch v.Kind {
	case KindTranscript:
		t.header = []string{"startTime", "endTime", "transcript", "transcriptionLanguage", "englishEquivalent", "type", "speakerGender", "speakerInfo"}
		for _, s := range v.Segments {
			t.rows = append(t.rows, []any{s.StartTime, s.EndTime, s.Transcript, s.TranscriptionLanguage, s.EnglishEquivalent, s.Type, s.SpeakerGender, s.SpeakerInfo})
		}
	case KindScenes:
		t.header = []string{"startTime", "endTime", "descriptionText", "keyObjects", "mood"}
		for _, s := range v.Scenes {
			t.rows = append(t.rows, []any{s.StartTime, s.EndTime, s.DescriptionText, strings.Join(s.KeyObjects, "; "), s.Mood})
		}
	case KindQuiz:
		t.header = []string{"id", "questionType", "question", "options", "correctAnswer", "difficulty", "explanation"}
		for _, q := range v.Questions {
			t.rows = append(t.rows, []any{q.ID, q.QuestionType, q.Question, strings.Join(q.Options, " | "), q.CorrectAnswer, q.Difficulty, q.Explanation})
		}
	case KindFlashcards:
		t.header = []string{"front", "back", "tag"}
		for _, f := range v.Flashcards {
			t.rows = append(t.rows, []any{f.Front, f.Back, f.Tag})
		}
	default:
		t.header = []string{"content"}
		t.rows = [][]any{{v.Text}}
	}
	return t
}

// ExportCosts renders the cost ledger with both currencies.
func ExportCosts(entries []models.CostEntry, exchangeRate float64, format string) (*File, error) {
	format = strings.ToLower(strings.TrimSpace(format))

	type record struct {
		Timestamp    string  `json:"timestamp"`
		ProjectName  string  `json:"project_name"`
		Type         string  `json:"type"`
		Model        string  `json:"model"`
		InputTokens  int64   `json:"input_tokens"`
		OutputTokens int64   `json:"output_tokens"`
		CostUSD      float64 `json:"cost_usd"`
		CostINR      float64 `json:"cost_inr"`
	}

	records := make([]record, 0, len(entries))
	t := table{header: []string{"timestamp", "project_name", "type", "model", "input_tokens", "output_tokens", "cost_usd", "cost_inr"}}
	for _, e := range entries {
		r := record{
			Timestamp:    e.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			ProjectName:  e.ProjectName,
			Type:         string(e.Type),
			Model:        e.Model,
			InputTokens:  e.Tokens.Input,
			OutputTokens: e.Tokens.Output,
			CostUSD:      e.Cost,
			CostINR:      e.Cost * exchangeRate,
		}
		records = append(records, r)
		t.rows = append(t.rows, []any{r.Timestamp, r.ProjectName, r.Type, r.Model, r.InputTokens, r.OutputTokens, r.CostUSD, r.CostINR})
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(records, "", "  ")
	case FormatCSV:
		data, err = writeCSV(t)
	case FormatXLSX:
		data, err = writeXLSX(t)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build %s export: %w", format, err)
	}

	return &File{
		Name:        "tubeboard-costs." + format,
		ContentType: contentTypes[format],
		Data:        data,
	}, nil
}

func writeCSV(t table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.header); err != nil {
		return nil, err
	}
	record := make([]string, len(t.header))
	for _, row := range t.rows {
		for i, cell := range row {
			record[i] = cellString(cell)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func cellString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

const sheetName = "Sheet1"

func writeXLSX(t table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for col, h := range t.header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, err
		}
	}
	for r, row := range t.rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// markdown returns the generation as a document with a metadata header.
func markdown(projectName string, gen models.Generation, v View) string {
	var sb strings.Builder

	title := projectName
	if title == "" {
		title = string(gen.Type)
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Type | %s |\n", gen.Type))
	sb.WriteString(fmt.Sprintf("| Model | %s |\n", gen.Model))
	sb.WriteString(fmt.Sprintf("| Tokens | %s in / %s out |\n", pricing.FormatTokens(gen.Tokens.Input), pricing.FormatTokens(gen.Tokens.Output)))
	sb.WriteString(fmt.Sprintf("| Cost | %s |\n", pricing.FormatUSD(gen.Cost)))
	if n := len(v.Segments); n > 0 {
		sb.WriteString(fmt.Sprintf("| Span | %s |\n", formatDuration(int(parseSeconds(v.Segments[n-1].EndTime)))))
	}
	sb.WriteString(fmt.Sprintf("| Generated | %s |\n", gen.CreatedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString("\n---\n\n")

	switch v.Kind {
	case KindTranscript:
		for _, s := range v.Segments {
			speaker := ""
			if s.SpeakerInfo != "" {
				speaker = " **" + s.SpeakerInfo + ":**"
			}
			sb.WriteString(fmt.Sprintf("- `%s`%s %s\n", s.StartTime, speaker, s.Transcript))
		}
	case KindScenes:
		for _, s := range v.Scenes {
			sb.WriteString(fmt.Sprintf("## %s – %s\n\n%s\n\n", s.StartTime, s.EndTime, s.DescriptionText))
			if s.Mood != "" {
				sb.WriteString(fmt.Sprintf("*Mood:* %s\n\n", s.Mood))
			}
			if len(s.KeyObjects) > 0 {
				sb.WriteString(fmt.Sprintf("*Key objects:* %s\n\n", strings.Join(s.KeyObjects, ", ")))
			}
		}
	case KindQuiz:
		for _, q := range v.Questions {
			sb.WriteString(fmt.Sprintf("### %d. %s\n\n", q.ID, q.Question))
			for _, opt := range q.Options {
				sb.WriteString(fmt.Sprintf("- %s\n", opt))
			}
			sb.WriteString(fmt.Sprintf("\n**Answer:** %s\n\n", q.CorrectAnswer))
			if q.Explanation != "" {
				sb.WriteString(q.Explanation + "\n\n")
			}
		}
	case KindFlashcards:
		sb.WriteString("| Front | Back | Tag |\n|-------|------|-----|\n")
		for _, f := range v.Flashcards {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", mdCell(f.Front), mdCell(f.Back), mdCell(f.Tag)))
		}
	default:
		sb.WriteString(v.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

func mdCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}

func plainText(v View) string {
	var sb strings.Builder
	switch v.Kind {
	case KindTranscript:
		for _, s := range v.Segments {
			sb.WriteString(fmt.Sprintf("[%s] %s\n", s.StartTime, s.Transcript))
		}
	case KindScenes:
		for _, s := range v.Scenes {
			sb.WriteString(fmt.Sprintf("[%s - %s] %s\n", s.StartTime, s.EndTime, s.DescriptionText))
		}
	case KindQuiz:
		for _, q := range v.Questions {
			sb.WriteString(fmt.Sprintf("%d. %s\n   Answer: %s\n", q.ID, q.Question, q.CorrectAnswer))
		}
	case KindFlashcards:
		for _, f := range v.Flashcards {
			sb.WriteString(fmt.Sprintf("%s\n  → %s\n", f.Front, f.Back))
		}
	default:
		sb.WriteString(v.Text)
	}
	return sb.String()
}

// subRip writes segments as SubRip cues using their own start and end times.
// A segment whose end does not follow its start is shown for two seconds.
func subRip(segments []Segment) string {
	var sb strings.Builder
	if len(segments) == 0 {
		sb.WriteString("1\n00:00:00,000 --> 00:00:01,000\n(empty transcript)\n\n")
		return sb.String()
	}
	for i, s := range segments {
		start := parseSeconds(s.StartTime)
		end := parseSeconds(s.EndTime)
		if end <= start {
			end = start + 2
		}
		sb.WriteString(fmt.Sprintf("%d\n", i+1))
		sb.WriteString(fmt.Sprintf("%s --> %s\n", formatSRTTime(start), formatSRTTime(end)))
		sb.WriteString(strings.TrimSpace(s.Transcript))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func exportName(projectName string, gen models.Generation) string {
	stamp := gen.CreatedAt.UTC().Format("20060102-150405")
	if name := sanitizeFilename(projectName); name != "" {
		return fmt.Sprintf("%s-%s-%s", name, gen.Type, stamp)
	}
	return fmt.Sprintf("tubeboard-%s-%s", gen.Type, stamp)
}

// --- Helper Functions ---

// formatSRTTime converts seconds to SRT timestamp format: HH:MM:SS,mmm
func formatSRTTime(seconds float64) string {
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := int(seconds) % 60
	ms := int((seconds - float64(int(seconds))) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// formatDuration converts seconds to a human-readable duration string.
func formatDuration(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// sanitizeFilename replaces characters that aren't safe in a
// Content-Disposition filename.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "-",
		"?", "-", "\"", "-", "<", "-", ">", "-",
		"|", "-", "\n", " ", "\r", "",
	)
	name = replacer.Replace(name)

	for strings.Contains(name, "  ") {
		name = strings.ReplaceAll(name, "  ", " ")
	}
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}
	name = strings.TrimSpace(name)

	if len(name) > 100 {
		name = name[:100]
	}
	return name
}
