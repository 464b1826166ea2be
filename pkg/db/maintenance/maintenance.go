package maintenance

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"tutorgo/pkg/db"
	"tutorgo/pkg/store"
)

const materialCSVStateKey = "material:csv_mtime"

// MaterialKeyPrefix namespaces cached course material by topic.
const MaterialKeyPrefix = "material:topic:"

// Run executes all maintenance tasks: material import and pruning.
// It blocks until completion.
func Run(ctx context.Context, s store.Store, d *db.DB, csvPath string) error {
	slog.Info("Starting database maintenance...")

	if err := importMaterial(ctx, s, csvPath); err != nil {
		slog.Error("Material import failed", "error", err)
		// We don't stop startup for import failure, but we log it.
	} else {
		slog.Info("Material import check completed")
	}

	if err := pruneCache(ctx, d); err != nil {
		slog.Error("Cache pruning failed", "error", err)
	} else {
		slog.Info("Cache pruning completed")
	}

	if err := d.PruneSessions(90 * 24 * time.Hour); err != nil {
		slog.Error("Session pruning failed", "error", err)
	} else {
		slog.Info("Session pruning completed")
	}

	return nil
}

// importMaterial loads course material chunks from a CSV file conditional on
// modification time. Each row contributes one chunk to its topic's cache
// entry, which GenerateLesson reads as grounding context.
func importMaterial(ctx context.Context, s store.Store, csvPath string) error {
	info, err := os.Stat(csvPath)
	if os.IsNotExist(err) {
		return nil // File doesn't exist, nothing to import
	}
	if err != nil {
		return fmt.Errorf("failed to stat csv: %w", err)
	}

	fileMTime := info.ModTime().UTC().Format(time.RFC3339)

	// Check stored state
	if stored, found := s.GetCache(ctx, materialCSVStateKey); found && string(stored) == fileMTime {
		return nil // Up to date
	}

	slog.Info("Importing course material from CSV...", "path", csvPath)

	f, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)

	// Headers: Topic,Title,Content
	headers, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	// Handle potential BOM (Byte Order Mark) at start of file
	if len(headers) > 0 {
		if len(headers[0]) >= 3 && headers[0][:3] == "\xef\xbb\xbf" {
			headers[0] = headers[0][3:]
		}
	}

	idxMap := make(map[string]int)
	for i, h := range headers {
		idxMap[h] = i
	}
	slog.Debug("CSV header map", "idxMap", idxMap)

	chunks, err := collectMaterialRows(reader, idxMap)
	if err != nil {
		return err
	}

	count := 0
	for topic, list := range chunks {
		data, err := json.Marshal(list)
		if err != nil {
			return fmt.Errorf("failed to encode chunks for %q: %w", topic, err)
		}
		if err := s.SetCache(ctx, MaterialKeyPrefix+topic, data); err != nil {
			return fmt.Errorf("failed to cache material for %q: %w", topic, err)
		}
		count += len(list)
	}

	slog.Info("Imported course material", "topics", len(chunks), "chunks", count)

	// Update State
	if err := s.SetCache(ctx, materialCSVStateKey, []byte(fileMTime)); err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}

	return nil
}

func collectMaterialRows(reader *csv.Reader, idxMap map[string]int) (map[string][]string, error) {
	get := func(row []string, col string) string {
		if i, ok := idxMap[col]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	chunks := make(map[string][]string)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read error: %w", err)
		}

		topic := get(record, "Topic")
		content := get(record, "Content")
		if topic == "" || content == "" {
			continue
		}
		if title := get(record, "Title"); title != "" {
			content = title + "\n" + content
		}
		chunks[topic] = append(chunks[topic], content)
	}
	return chunks, nil
}

// pruneCache removes cache entries older than 30 days.
func pruneCache(ctx context.Context, d *db.DB) error {
	// 30 days
	return d.PruneCache(30 * 24 * time.Hour)
}
