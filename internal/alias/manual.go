package alias

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iidx-tools/songmaster/internal/store"
	"github.com/iidx-tools/songmaster/internal/util"
)

// manualColumns are required in the CSV header; note is optional
var manualColumns = []string{"textage_id", "alias", "alias_scope", "alias_type"}

// ManualRow is one validated row from the manual alias CSV
type ManualRow struct {
	LineNumber int
	TextageID  string
	Alias      string
	Scope      store.Scope
	Note       string
}

// ManualSeedReport summarizes one manual seeding pass
type ManualSeedReport struct {
	InsertedCount         int
	SkippedRedundantCount int
}

// ReadManualCSV loads and validates the human-curated alias CSV. The file
// is UTF-8 with an optional byte-order mark; the header row is required.
// Any malformed row fails the whole batch before a single insert.
func ReadManualCSV(path string) ([]ManualRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manual alias CSV not found: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(util.StripBOM(file))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read manual alias CSV header: %w", err)
	}

	columnIndex := make(map[string]int, len(header))
	for i, name := range header {
		columnIndex[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, column := range manualColumns {
		if _, ok := columnIndex[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: manual alias CSV missing required columns: %s",
			util.ErrInvalidConfig, strings.Join(missing, ", "))
	}

	var rows []ManualRow
	for lineNumber := 2; ; lineNumber++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read manual alias CSV: %w", err)
		}

		field := func(name string) string {
			index := columnIndex[name]
			if index >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[index])
		}

		textageID := field("textage_id")
		aliasText := field("alias")
		scopeRaw := field("alias_scope")
		typeRaw := field("alias_type")

		for name, value := range map[string]string{
			"textage_id": textageID, "alias": aliasText,
			"alias_scope": scopeRaw, "alias_type": typeRaw,
		} {
			if value == "" {
				return nil, fmt.Errorf("%w: manual alias CSV has empty required value: %s (line=%d)",
					util.ErrValidation, name, lineNumber)
			}
		}

		scope, err := store.ParseScope(scopeRaw)
		if err != nil {
			return nil, fmt.Errorf("%w: manual alias CSV line %d: %v", util.ErrValidation, lineNumber, err)
		}
		if typeRaw != string(store.AliasManual) {
			return nil, fmt.Errorf("%w: manual alias CSV has invalid alias_type (line=%d, value=%q)",
				util.ErrValidation, lineNumber, typeRaw)
		}

		rows = append(rows, ManualRow{
			LineNumber: lineNumber,
			TextageID:  textageID,
			Alias:      aliasText,
			Scope:      scope,
			Note:       field("note"),
		})
	}

	return rows, nil
}

// SeedManual validates the whole batch against the database and then
// inserts row by row. Rows restating an official alias exactly are
// skipped with a warning; any other uniqueness violation is fatal.
func SeedManual(q store.DBTX, rows []ManualRow, timestamp string) (*ManualSeedReport, error) {
	if err := validateNoDuplicateScopeAlias(rows); err != nil {
		return nil, err
	}
	if err := validateTextageIDsExist(q, rows); err != nil {
		return nil, err
	}

	officialTriples, err := store.OfficialAliasTriples(q)
	if err != nil {
		return nil, err
	}

	report := &ManualSeedReport{}
	for _, row := range rows {
		triple := store.AliasTriple{TextageID: row.TextageID, Scope: row.Scope, Alias: row.Alias}
		if officialTriples[triple] {
			report.SkippedRedundantCount++
			util.WarnLog("alias/manual: redundant row skipped (line=%d, textage_id=%s, scope=%s, alias=%q)",
				row.LineNumber, row.TextageID, row.Scope, row.Alias)
			continue
		}

		err := store.InsertAlias(q, &store.Alias{
			TextageID: row.TextageID,
			Scope:     row.Scope,
			Alias:     row.Alias,
			Type:      store.AliasManual,
		}, timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: manual alias collision (line=%d, scope=%s, alias=%q): %v",
				util.ErrCollision, row.LineNumber, row.Scope, row.Alias, err)
		}
		report.InsertedCount++
	}

	return report, nil
}

func validateNoDuplicateScopeAlias(rows []ManualRow) error {
	type key struct {
		scope store.Scope
		alias string
	}
	firstSeen := make(map[key]int, len(rows))

	for _, row := range rows {
		k := key{row.Scope, row.Alias}
		if firstLine, dup := firstSeen[k]; dup {
			return fmt.Errorf(
				"%w: manual alias CSV has duplicate (alias_scope, alias) rows: %s:%q first_line=%d dup_line=%d",
				util.ErrValidation, k.scope, k.alias, firstLine, row.LineNumber)
		}
		firstSeen[k] = row.LineNumber
	}
	return nil
}

func validateTextageIDsExist(q store.DBTX, rows []ManualRow) error {
	existing, err := store.TextageIDSet(q)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if !existing[row.TextageID] {
			return fmt.Errorf("%w: manual alias CSV has textage_id not found in music (line=%d, textage_id=%q)",
				util.ErrValidation, row.LineNumber, row.TextageID)
		}
	}
	return nil
}
