// package formatter exports generation history (CSV, Markdown, JSON) and downloads generated images
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/shared"
)

// Format is an export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// maxImageBytes bounds a downloaded result image.
const maxImageBytes = 32 << 20

// ParseFormat accepts csv, markdown (or md) and json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json", "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (csv, markdown, json)", shared.ErrInvalidArgument, s)
	}
}

// Ext returns the file extension for f.
func (f Format) Ext() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	default:
		return ".json"
	}
}

// Entry is the exported shape of one generation.
type Entry struct {
	Sequence   int       `json:"sequence"`
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Prompt     string    `json:"prompt"`
	ImageRef   string    `json:"imageRef,omitempty"`
	TaskID     string    `json:"taskId,omitempty"`
	Status     string    `json:"status"`
	ResultURLs []string  `json:"resultUrls"`
	Error      string    `json:"error,omitempty"`
	Attempts   int       `json:"attempts"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewEntry converts a stored record.
func NewEntry(rec *models.GenerationRecord) Entry {
	urls := rec.ResultURLs
	if urls == nil {
		urls = []string{}
	}
	return Entry{
		Sequence:   rec.Sequence,
		ID:         rec.ID,
		Mode:       string(rec.Mode),
		Prompt:     rec.Prompt,
		ImageRef:   rec.ImageRef,
		TaskID:     rec.TaskID,
		Status:     rec.Status.String(),
		ResultURLs: urls,
		Error:      rec.Error,
		Attempts:   rec.Attempts,
		CreatedAt:  rec.CreatedAt,
	}
}

// Export renders records in format f.
func Export(f Format, records []*models.GenerationRecord) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ExportToCSV(records)
	case FormatMarkdown:
		return ExportToMarkdown(records)
	case FormatJSON:
		return ExportToJSON(records)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
	}
}

// ExportToCSV writes one row per generation; result URLs are joined with spaces.
func ExportToCSV(records []*models.GenerationRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Sequence", "ID", "Mode", "Prompt", "Status", "Attempts", "TaskID", "ResultURLs", "Error", "CreatedAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, rec := range records {
		row := []string{
			strconv.Itoa(rec.Sequence),
			rec.ID,
			string(rec.Mode),
			rec.Prompt,
			rec.Status.String(),
			strconv.Itoa(rec.Attempts),
			rec.TaskID,
			strings.Join(rec.ResultURLs, " "),
			rec.Error,
			rec.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a summary followed by one section per generation.
func ExportToMarkdown(records []*models.GenerationRecord) ([]byte, error) {
	var buf bytes.Buffer

	counts := map[models.OutcomeKind]int{}
	for _, rec := range records {
		counts[rec.Status]++
	}

	buf.WriteString("# Generation History\n\n")
	fmt.Fprintf(&buf, "**Generations**: %d\n", len(records))
	fmt.Fprintf(&buf, "**Succeeded**: %d | **Failed**: %d | **Timed out**: %d\n\n",
		counts[models.OutcomeSuccess], counts[models.OutcomeFailure], counts[models.OutcomeTimeout])

	for _, rec := range records {
		fmt.Fprintf(&buf, "## #%d %s (%s)\n\n", rec.Sequence, escapeMarkdown(rec.Prompt), rec.Mode)
		fmt.Fprintf(&buf, "- **Status**: %s after %d status check(s)\n", rec.Status, rec.Attempts)
		fmt.Fprintf(&buf, "- **Created**: %s\n", rec.CreatedAt.Format(time.RFC3339))
		if rec.TaskID != "" {
			fmt.Fprintf(&buf, "- **Task**: `%s`\n", rec.TaskID)
		}
		if rec.ImageRef != "" {
			fmt.Fprintf(&buf, "- **Source**: %s\n", rec.ImageRef)
		}
		if rec.Error != "" {
			fmt.Fprintf(&buf, "- **Error**: %s\n", rec.Error)
		}
		buf.WriteString("\n")

		for i, url := range rec.ResultURLs {
			fmt.Fprintf(&buf, "![Result %d](%s)\n", i+1, url)
		}
		if len(rec.ResultURLs) > 0 {
			buf.WriteString("\n")
		}
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders an indented array of [Entry].
func ExportToJSON(records []*models.GenerationRecord) ([]byte, error) {
	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, NewEntry(rec))
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteExport renders records and writes them to path, defaulting to history{ext}.
func WriteExport(f Format, records []*models.GenerationRecord, path string) (string, error) {
	if path == "" {
		path = "history" + f.Ext()
	}

	data, err := Export(f, records)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

// DownloadImage fetches a generated image and returns the raw bytes.
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty URL provided", shared.ErrMissingArgument)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(imageData) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	return imageData, nil
}

// SaveImages downloads every url into dir as {prefix}_{n}{ext} and returns the written paths.
func SaveImages(ctx context.Context, client *http.Client, urls []string, dir, prefix string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	var paths []string
	for i, url := range urls {
		data, err := DownloadImage(ctx, client, url)
		if err != nil {
			return paths, err
		}

		name := filepath.Join(dir, fmt.Sprintf("%s_%d%s", prefix, i+1, imageExt(data)))
		if err := os.WriteFile(name, data, 0644); err != nil {
			return paths, fmt.Errorf("failed to save image: %w", err)
		}
		paths = append(paths, name)
	}
	return paths, nil
}

func imageExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

func escapeMarkdown(s string) string {
	return strings.NewReplacer("\n", " ", "#", "\\#", "*", "\\*", "_", "\\_").Replace(s)
}
