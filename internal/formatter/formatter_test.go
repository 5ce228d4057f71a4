package formatter

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/shared"
	th "github.com/desertthunder/animx/internal/testing"
)

func sampleRecords() []*models.GenerationRecord {
	created := time.Date(2025, 5, 4, 10, 30, 0, 0, time.UTC)
	return []*models.GenerationRecord{
		{
			ID: "g2", Sequence: 2, Mode: models.ModeEdit, Prompt: "anime, soft light",
			ImageRef: "data:image/png;base64,...", TaskID: "t-2", Status: models.OutcomeSuccess,
			ResultURLs: []string{"https://cdn/a.png", "https://cdn/b.png"}, Attempts: 3, CreatedAt: created,
		},
		{
			ID: "g1", Sequence: 1, Mode: models.ModeText, Prompt: "a fox", TaskID: "t-1",
			Status: models.OutcomeFailure, Error: "task failed: policy", Attempts: 1, CreatedAt: created,
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"csv", FormatCSV},
		{"Markdown", FormatMarkdown},
		{"md", FormatMarkdown},
		{"json", FormatJSON},
		{"", FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if err != nil || got != tt.want {
				t.Errorf("expected %s, got %s (%v)", tt.want, got, err)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleRecords())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("expected header and 2 rows, got %d", len(rows))
		}
		if rows[0][0] != "Sequence" || rows[0][7] != "ResultURLs" {
			t.Errorf("unexpected headers %v", rows[0])
		}
		if rows[1][3] != "anime, soft light" {
			t.Errorf("prompt with comma not preserved: %q", rows[1][3])
		}
		if rows[1][7] != "https://cdn/a.png https://cdn/b.png" {
			t.Errorf("unexpected urls %q", rows[1][7])
		}
		if rows[2][4] != "failure" || rows[2][8] != "task failed: policy" {
			t.Errorf("unexpected failure row %v", rows[2])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(sampleRecords())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{
			"# Generation History",
			"**Generations**: 2",
			"**Succeeded**: 1 | **Failed**: 1 | **Timed out**: 0",
			"## #2 anime, soft light (image2image)",
			"![Result 2](https://cdn/b.png)",
			"- **Error**: task failed: policy",
			"- **Task**: `t-1`",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("markdown missing %q", want)
			}
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(sampleRecords())
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var entries []Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(entries) != 2 || entries[0].Status != "success" || len(entries[0].ResultURLs) != 2 {
			t.Errorf("unexpected entries %+v", entries)
		}
		if entries[1].ResultURLs == nil {
			t.Error("failure entry should have an empty url list, not null")
		}
	})

	t.Run("empty history", func(t *testing.T) {
		data, err := ExportToJSON(nil)
		if err != nil || strings.TrimSpace(string(data)) != "[]" {
			t.Errorf("expected empty array, got %q (%v)", data, err)
		}
	})
}

func TestWriteExport(t *testing.T) {
	t.Run("default path", func(t *testing.T) {
		wd := th.MustGetwd(t)
		th.MustChdir(t, t.TempDir())
		defer th.MustChdir(t, wd)

		path, err := WriteExport(FormatCSV, sampleRecords(), "")
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if path != "history.csv" {
			t.Errorf("expected history.csv, got %s", path)
		}
		th.AssertFileExists(t, path)
	})

	t.Run("nested path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out", "history.md")
		if _, err := WriteExport(FormatMarkdown, sampleRecords(), path); err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if content := th.MustReadFile(t, path); !strings.Contains(content, "# Generation History") {
			t.Errorf("unexpected content %q", content)
		}
	})
}

func TestDownloadImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(png)
	}))
	defer server.Close()

	t.Run("success", func(t *testing.T) {
		data, err := DownloadImage(context.Background(), server.Client(), server.URL+"/a.png")
		if err != nil || string(data) != string(png) {
			t.Errorf("unexpected result %q (%v)", data, err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		if _, err := DownloadImage(context.Background(), server.Client(), server.URL+"/missing.png"); err == nil {
			t.Error("expected error for 404")
		}
	})

	t.Run("empty URL", func(t *testing.T) {
		if _, err := DownloadImage(context.Background(), nil, ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("SaveImages", func(t *testing.T) {
		dir := t.TempDir()
		paths, err := SaveImages(context.Background(), server.Client(), []string{server.URL + "/a.png", server.URL + "/b.png"}, dir, "task")
		if err != nil {
			t.Fatalf("SaveImages failed: %v", err)
		}
		if len(paths) != 2 || filepath.Base(paths[1]) != "task_2.png" {
			t.Errorf("unexpected paths %v", paths)
		}
		if _, err := os.Stat(paths[0]); err != nil {
			t.Errorf("file not written: %v", err)
		}
	})
}
