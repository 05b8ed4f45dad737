package renamer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// BatchLog is the saved record of a directory run
type BatchLog struct {
	RunID   string         `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Success []SuccessEntry `json:"success" yaml:"success"`
	Failed  []FailedEntry  `json:"failed" yaml:"failed"`
	Skipped []SkippedEntry `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

type SuccessEntry struct {
	Original string `json:"original" yaml:"original"`
	New      string `json:"new" yaml:"new"`
}

type FailedEntry struct {
	File  string `json:"file" yaml:"file"`
	Error string `json:"error" yaml:"error"`
}

type SkippedEntry struct {
	File   string `json:"file" yaml:"file"`
	Reason string `json:"reason" yaml:"reason"`
}

// NewBatchLog converts results into the saved log layout
func NewBatchLog(runID string, results []Result) BatchLog {
	log := BatchLog{
		RunID:   runID,
		Success: []SuccessEntry{},
		Failed:  []FailedEntry{},
	}
	for _, r := range results {
		name := filepath.Base(r.Source)
		switch r.Status {
		case StatusFailed:
			log.Failed = append(log.Failed, FailedEntry{File: name, Error: errorText(r.Err)})
		case StatusSkipped:
			log.Skipped = append(log.Skipped, SkippedEntry{File: name, Reason: "already has target name"})
		default:
			log.Success = append(log.Success, SuccessEntry{Original: name, New: r.Destination})
		}
	}
	return log
}

// FileLog is the saved record of a single file run
type FileLog struct {
	FilesProcessed int         `json:"files_processed" yaml:"files_processed"`
	FilesFailed    int         `json:"files_failed" yaml:"files_failed"`
	Files          []FileEntry `json:"files" yaml:"files"`
}

type FileEntry struct {
	File    string `json:"file" yaml:"file"`
	Status  string `json:"status" yaml:"status"`
	Message string `json:"message" yaml:"message"`
}

// NewFileLog converts one result into the saved log layout
func NewFileLog(r Result) FileLog {
	entry := FileEntry{File: r.Source}
	log := FileLog{Files: []FileEntry{}}
	if r.OK() {
		log.FilesProcessed = 1
		entry.Status = "success"
		entry.Message = r.Destination
	} else {
		log.FilesFailed = 1
		entry.Status = "failed"
		entry.Message = errorText(r.Err)
	}
	log.Files = append(log.Files, entry)
	return log
}

// WriteLog saves v as YAML when path ends in .yaml or .yml, JSON otherwise
func WriteLog(path string, v any) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(v)
	default:
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encode log: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
