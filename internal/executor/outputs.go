package executor

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RevCBH/ragweb/internal/model"
)

// resolveOutputs matches def.OutputSpec's glob patterns against files
// under workspaceDir/outputs, and builds the JobTaskResults finalize()
// reports (spec.md §4.3.6, §4.4.2): a nonzero exitCode always wins; an
// unmatched declared pattern is recorded in UnmatchedPatterns; a level4
// file too large or with too many rows is excluded from Outputs and
// recorded in Level4ExcludedFiles rather than failing the job. The
// result is unredacted — callers posting it over the wire must call
// Redact() first, which turns those lists into the Has* flags
// (spec.md §4.4.3).
func resolveOutputs(workspaceDir string, def model.JobDefinition, exitCode int) (model.JobTaskResults, error) {
	results := model.JobTaskResults{ExitCode: exitCode}
	if exitCode != 0 {
		return results, nil
	}

	outputsDir := filepath.Join(workspaceDir, "outputs")
	matched := make(map[string]string)

	for level, names := range def.OutputSpec {
		for name, pattern := range names {
			matches, err := filepath.Glob(filepath.Join(outputsDir, pattern))
			if err != nil {
				return model.JobTaskResults{}, fmt.Errorf("invalid output pattern %q: %w", pattern, err)
			}
			if len(matches) == 0 {
				results.UnmatchedPatterns = append(results.UnmatchedPatterns, pattern)
				continue
			}
			for _, m := range matches {
				rel, err := filepath.Rel(outputsDir, m)
				if err != nil {
					return model.JobTaskResults{}, err
				}
				if level == model.PrivacyHighlySensitive {
					excluded, err := exceedsLevel4Limits(m, def.Level4MaxFilesize, def.Level4MaxCSVRows)
					if err != nil {
						return model.JobTaskResults{}, err
					}
					if excluded {
						results.Level4ExcludedFiles = append(results.Level4ExcludedFiles, rel)
						continue
					}
				}
				matched[name] = rel
			}
		}
	}

	results.Outputs = matched
	return results, nil
}

// exceedsLevel4Limits reports whether a level4 (highly sensitive)
// output file exceeds the declared size or, for CSV files, row-count
// limit (spec.md §6.3 "level4_max_filesize"/"level4_max_csv_rows").
func exceedsLevel4Limits(path string, maxFilesize, maxCSVRows int64) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if maxFilesize > 0 && info.Size() > maxFilesize {
		return true, nil
	}
	if maxCSVRows <= 0 || filepath.Ext(path) != ".csv" {
		return false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	var rows int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		rows++
		if rows > maxCSVRows {
			return true, nil
		}
	}
	return false, scanner.Err()
}
