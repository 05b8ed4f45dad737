package models

import (
	"strings"
	"testing"
)

func TestAnalysisValidation(t *testing.T) {
	digest := strings.Repeat("ab", 32)

	tests := []struct {
		name     string
		analysis Analysis
		wantErr  bool
	}{
		{
			name: "valid analysis",
			analysis: Analysis{
				Checksum:    digest,
				Filename:    "scan_001.pdf",
				Date:        "2024-03-15",
				Description: "Electric bill",
			},
			wantErr: false,
		},
		{
			name:     "short checksum",
			analysis: Analysis{Checksum: "abc", Description: "Electric bill"},
			wantErr:  true,
		},
		{
			name:     "missing description",
			analysis: Analysis{Checksum: digest},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.analysis.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRenameRecordValidation(t *testing.T) {
	tests := []struct {
		name    string
		record  RenameRecord
		wantErr bool
	}{
		{
			name:    "valid record",
			record:  RenameRecord{OriginalPath: "/scans/a.pdf", NewPath: "/scans/2024-03-15_Bill.pdf"},
			wantErr: false,
		},
		{
			name:    "missing original",
			record:  RenameRecord{NewPath: "/scans/b.pdf"},
			wantErr: true,
		},
		{
			name:    "missing new path",
			record:  RenameRecord{OriginalPath: "/scans/a.pdf"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
