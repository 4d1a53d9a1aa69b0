package edgar

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FilingMetadata contains information extracted from SEC URLs or filings
type FilingMetadata struct {
	CIK       string
	Accession string
	FormType  string
}

var (
	// /edgar/data/{CIK}/{ACCESSION}/{filename}
	archivePathRe = regexp.MustCompile(`/edgar/data/(\d+)/(\d{18})/`)
	// /edgar/data/{CIK}/{ACCESSION-WITH-DASHES}.txt
	submissionPathRe = regexp.MustCompile(`/edgar/data/(\d+)/(\d{10}-\d{2}-\d{6})\.txt`)
)

// ExtractMetadataFromURL parses SEC EDGAR URLs to extract CIK and accession number.
// Both archive layouts are accepted:
//
//	https://www.sec.gov/Archives/edgar/data/320193/000032019318000145/R2.htm
//	https://www.sec.gov/Archives/edgar/data/320193/0000320193-18-000145.txt
func ExtractMetadataFromURL(url string) (*FilingMetadata, error) {
	if m := submissionPathRe.FindStringSubmatch(url); m != nil {
		return &FilingMetadata{CIK: m[1], Accession: m[2]}, nil
	}

	m := archivePathRe.FindStringSubmatch(url)
	if m == nil {
		return nil, fmt.Errorf("could not extract CIK and accession from URL")
	}

	// Format accession number: 0000320193-18-000145
	accession := m[2][:10] + "-" + m[2][10:12] + "-" + m[2][12:]
	return &FilingMetadata{CIK: m[1], Accession: accession}, nil
}

// ExtractMetadataFromFiling reads the form type of the filing's first
// document and the CIK from its source URL
func ExtractMetadataFromFiling(f *Filing) *FilingMetadata {
	meta := &FilingMetadata{}
	if len(f.Documents) > 0 {
		meta.FormType = f.Documents[0].Type
	}
	if f.URL != "" {
		if urlMeta, err := ExtractMetadataFromURL(f.URL); err == nil {
			meta.CIK = urlMeta.CIK
			meta.Accession = urlMeta.Accession
		}
	}
	return meta
}

// MergeMetadata combines URL and filing metadata, preferring URL data when available
func MergeMetadata(urlMeta, filingMeta *FilingMetadata) *FilingMetadata {
	merged := &FilingMetadata{}

	if urlMeta != nil {
		merged.CIK = urlMeta.CIK
		merged.Accession = urlMeta.Accession
	}

	if filingMeta != nil {
		if merged.CIK == "" {
			merged.CIK = filingMeta.CIK
		}
		if merged.Accession == "" {
			merged.Accession = filingMeta.Accession
		}
		merged.FormType = filingMeta.FormType
	}

	return merged
}

// GenerateFilename creates a filename from metadata:
// {CIK}-{accession}_{suffix}.{ext}, falling back to {suffix}.{ext}
func GenerateFilename(meta *FilingMetadata, suffix, ext string) string {
	suffix = strings.ToLower(strings.ReplaceAll(suffix, " ", "_"))
	switch {
	case meta.CIK != "" && meta.Accession != "":
		return fmt.Sprintf("%s-%s_%s.%s", meta.CIK, meta.Accession, suffix, ext)
	case meta.CIK != "":
		return fmt.Sprintf("%s_%s.%s", meta.CIK, suffix, ext)
	}
	return fmt.Sprintf("%s.%s", suffix, ext)
}

// SaveOptions configures how files should be saved
type SaveOptions struct {
	SaveOriginal bool
	OriginalPath string // If empty, uses smart naming
	OutputPath   string // If empty, uses smart naming or stdout
	OutputDir    string // Directory for output files (default: current dir)
}

// SaveResult contains paths to saved files
type SaveResult struct {
	OriginalPath string
	OutputPath   string
}

// SaveFiles writes the raw submission and/or the JSON encoding of v
func SaveFiles(raw []byte, v any, meta *FilingMetadata, opts SaveOptions) (*SaveResult, error) {
	result := &SaveResult{}

	if opts.OutputDir != "" {
		if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if opts.SaveOriginal {
		originalPath := opts.OriginalPath
		if originalPath == "" {
			originalPath = GenerateFilename(meta, "submission", "txt")
		}
		if opts.OutputDir != "" {
			originalPath = filepath.Join(opts.OutputDir, originalPath)
		}

		if err := os.WriteFile(originalPath, raw, 0644); err != nil {
			return nil, fmt.Errorf("failed to save original submission: %w", err)
		}
		result.OriginalPath = originalPath
	}

	if opts.OutputPath != "" {
		outputPath := opts.OutputPath
		if opts.OutputDir != "" && !filepath.IsAbs(outputPath) {
			outputPath = filepath.Join(opts.OutputDir, outputPath)
		}

		data, err := FormatJSON(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to save JSON output: %w", err)
		}
		result.OutputPath = outputPath
	}

	return result, nil
}

// FormatJSON returns pretty-printed JSON
func FormatJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
