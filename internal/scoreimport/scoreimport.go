// Package scoreimport identifies songs in an exported arcade score CSV
// against the ac-scope alias index and reports how many titles resolve.
// It never writes to the artifact; the output is a JSON report, an
// unmatched-title CSV and an optional Discord summary.
package scoreimport

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/iidx-tools/songmaster/internal/notify"
	"github.com/iidx-tools/songmaster/internal/store"
	"github.com/iidx-tools/songmaster/internal/util"
)

// titleColumn is the header of the song title column in the exported CSV
const titleColumn = "タイトル"

const unmatchedTopN = 10

// UnmatchedTitle is one CSV title that resolved to no song
type UnmatchedTitle struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

// Report is the identification result persisted as JSON
type Report struct {
	SourceCSVFile     string           `json:"source_csv_file"`
	AliasScope        string           `json:"alias_scope"`
	TotalSongRows     int              `json:"total_song_rows"`
	MatchedSongRows   int              `json:"matched_song_rows"`
	UnmatchedSongRows int              `json:"unmatched_song_rows"`
	MatchRate         float64          `json:"match_rate"`
	UnmatchedTop      []UnmatchedTitle `json:"unmatched_titles_topN"`
	GeneratedAt       string           `json:"generated_at"`
}

// Identify reads the score CSV and resolves every title through the
// ac-scope official and manual aliases. It returns the report plus the
// full sorted unmatched list for the CSV artifact.
func Identify(q store.DBTX, csvPath string) (*Report, []UnmatchedTitle, error) {
	aliasMap, err := store.AliasMap(q, store.ScopeAC, store.AliasOfficial, store.AliasManual)
	if err != nil {
		return nil, nil, err
	}
	if len(aliasMap) == 0 {
		return nil, nil, fmt.Errorf("%w: no ac-scope official/manual aliases; build the artifact first",
			util.ErrValidation)
	}

	total, matched, unmatchedCounts, err := readAndMatch(csvPath, aliasMap)
	if err != nil {
		return nil, nil, err
	}

	unmatched := sortedUnmatched(unmatchedCounts)

	matchRate := 0.0
	if total > 0 {
		matchRate = float64(matched) / float64(total) * 100.0
	}

	top := unmatched
	if len(top) > unmatchedTopN {
		top = top[:unmatchedTopN]
	}

	report := &Report{
		SourceCSVFile:     csvPath,
		AliasScope:        string(store.ScopeAC),
		TotalSongRows:     total,
		MatchedSongRows:   matched,
		UnmatchedSongRows: total - matched,
		MatchRate:         matchRate,
		UnmatchedTop:      top,
		GeneratedAt:       util.UTCTimestamp(),
	}
	return report, unmatched, nil
}

func readAndMatch(csvPath string, aliasMap map[string]string) (int, int, map[string]int, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("failed to open score CSV: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(util.StripBOM(file))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("failed to read score CSV header: %w", err)
	}

	titleIndex := -1
	for i, name := range header {
		if strings.TrimSpace(name) == titleColumn {
			titleIndex = i
			break
		}
	}
	if titleIndex < 0 {
		return 0, 0, nil, fmt.Errorf("%w: score CSV missing required column: %s",
			util.ErrValidation, titleColumn)
	}

	total := 0
	matched := 0
	unmatched := make(map[string]int)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, 0, nil, fmt.Errorf("failed to read score CSV: %w", err)
		}

		total++
		title := ""
		if titleIndex < len(record) {
			title = strings.TrimSpace(record[titleIndex])
		}

		if _, ok := aliasMap[title]; ok {
			matched++
		} else {
			unmatched[title]++
		}
	}

	return total, matched, unmatched, nil
}

// sortedUnmatched orders by descending count, then title
func sortedUnmatched(counts map[string]int) []UnmatchedTitle {
	titles := make([]UnmatchedTitle, 0, len(counts))
	for title, count := range counts {
		titles = append(titles, UnmatchedTitle{Title: title, Count: count})
	}
	sort.Slice(titles, func(i, j int) bool {
		if titles[i].Count != titles[j].Count {
			return titles[i].Count > titles[j].Count
		}
		return titles[i].Title < titles[j].Title
	})
	return titles
}

// WriteReportJSON persists the report artifact
func WriteReportJSON(report *Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode import report: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write import report: %w", err)
	}
	return nil
}

// WriteUnmatchedCSV persists the full unmatched-title list
func WriteUnmatchedCSV(unmatched []UnmatchedTitle, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create unmatched CSV: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"title", "count"}); err != nil {
		return err
	}
	for _, item := range unmatched {
		if err := writer.Write([]string{item.Title, fmt.Sprintf("%d", item.Count)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// PrintSummary writes the human-readable report to stdout
func PrintSummary(report *Report) {
	fmt.Println("AC score CSV identification report")
	fmt.Printf("- source_csv_file: %s\n", report.SourceCSVFile)
	fmt.Printf("- alias_scope: %s\n", report.AliasScope)
	fmt.Printf("- total_song_rows: %d\n", report.TotalSongRows)
	fmt.Printf("- matched_song_rows: %d\n", report.MatchedSongRows)
	fmt.Printf("- unmatched_song_rows: %d\n", report.UnmatchedSongRows)
	fmt.Printf("- match_rate: %.2f%%\n", report.MatchRate)

	if len(report.UnmatchedTop) == 0 {
		fmt.Println("- unmatched_titles_top10: None")
		return
	}
	fmt.Println("- unmatched_titles_top10:")
	for _, item := range report.UnmatchedTop {
		fmt.Printf("  - %s (%d)\n", item.Title, item.Count)
	}
}

// DiscordMessage renders the webhook summary, shrinking the unmatched
// block until the message fits under the safe limit.
func DiscordMessage(report *Report) string {
	content := renderDiscord(report, report.UnmatchedTop, "")
	if len(content) <= notify.SafeLimit {
		return content
	}

	top := report.UnmatchedTop
	if len(top) > 5 {
		top = top[:5]
	}
	content = renderDiscord(report, top, "")
	if len(content) <= notify.SafeLimit {
		return content
	}

	return renderDiscord(report, nil, "Unmatched Titles: See log")
}

func renderDiscord(report *Report, unmatched []UnmatchedTitle, fallbackNote string) string {
	lines := []string{
		"AC Score CSV Import Report",
		fmt.Sprintf("CSV File: %s", filepath.Base(report.SourceCSVFile)),
		fmt.Sprintf("Total Songs: %d", report.TotalSongRows),
		fmt.Sprintf("Matched Songs: %d", report.MatchedSongRows),
		fmt.Sprintf("Unmatched Songs: %d", report.UnmatchedSongRows),
		fmt.Sprintf("Match Rate: %.2f%%", report.MatchRate),
	}

	switch {
	case fallbackNote != "":
		lines = append(lines, fallbackNote)
	case len(unmatched) == 0:
		lines = append(lines, "Unmatched Titles: None")
	default:
		lines = append(lines, "Unmatched Titles (Top):")
		for _, item := range unmatched {
			lines = append(lines, fmt.Sprintf("- %s (%d)", item.Title, item.Count))
		}
	}

	return strings.Join(lines, "\n")
}
