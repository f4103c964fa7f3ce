package recovery

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"geoetl/pkg/models"
)

// WriteReport saves the report as timestamped JSON under dir and returns
// the path written.
func WriteReport(report *Report, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	name := fmt.Sprintf("recovery_report_%s.json", report.GeneratedAt.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// WriteReplayList writes the report's replay list as one canonical unit
// key per line, consumable by the pipeline's replay-list mode.
func WriteReplayList(report *Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create replay list directory: %w", err)
	}

	var b strings.Builder
	for _, key := range report.ReplayList {
		b.WriteString(key.String())
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write replay list: %w", err)
	}
	return nil
}

// ReadReplayList parses a replay list file. Blank lines and lines starting
// with '#' are ignored.
func ReadReplayList(path string) ([]models.UnitKey, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay list: %w", err)
	}
	defer file.Close()

	var keys []models.UnitKey
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, err := models.ParseUnitKey(line)
		if err != nil {
			return nil, fmt.Errorf("replay list %s: %w", path, err)
		}
		keys = append(keys, key)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read replay list: %w", err)
	}
	return keys, nil
}
