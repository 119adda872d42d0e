package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/ppiankov/veracity/internal/model"
	"gopkg.in/yaml.v3"
)

// Report summarizes an import
type Report struct {
	Imported int `json:"imported"`
	Indexed  int `json:"indexed"`
	Skipped  int `json:"skipped"`
}

// ImportFile reads sources from a YAML or CSV file, stores them and
// indexes the stored ones. Invalid rows are skipped; their errors are
// returned together once the valid rows are in.
func (i *Ingester) ImportFile(ctx context.Context, path string) (Report, error) {
	sources, readErr := ReadSourcesFile(path)
	if readErr != nil && len(sources) == 0 {
		return Report{}, readErr
	}

	report, err := i.Import(ctx, sources)
	if readErr != nil {
		var rowErrs *multierror.Error
		if errors.As(readErr, &rowErrs) {
			report.Skipped += len(rowErrs.Errors)
		} else {
			report.Skipped++
		}
		err = multierror.Append(readErr, err).ErrorOrNil()
	}
	return report, err
}

// Import stores and indexes sources
func (i *Ingester) Import(ctx context.Context, sources []model.EvidenceSource) (Report, error) {
	var report Report
	var errs *multierror.Error
	stored := make([]model.EvidenceSource, 0, len(sources))

	for n := range sources {
		src := sources[n]
		normalize(&src)
		i.reliability.Apply(&src)

		if err := i.store.AddSource(ctx, &src); err != nil {
			report.Skipped++
			errs = multierror.Append(errs, fmt.Errorf("source %d (%q): %w", n+1, src.Title, err))
			continue
		}
		stored = append(stored, src)
	}
	report.Imported = len(stored)

	indexed, err := i.IndexSources(ctx, stored)
	report.Indexed = indexed
	if err != nil {
		errs = multierror.Append(errs, err)
	}

	return report, errs.ErrorOrNil()
}

func normalize(src *model.EvidenceSource) {
	src.ID = strings.TrimSpace(src.ID)
	src.Title = strings.TrimSpace(src.Title)
	src.Content = strings.TrimSpace(src.Content)
	src.SourceName = strings.TrimSpace(src.SourceName)
	src.SourceURL = strings.TrimSpace(src.SourceURL)
	src.Topic = strings.TrimSpace(src.Topic)
	if src.SourceName == "" {
		src.SourceName = "Unknown"
	}
}

// ReadSourcesFile parses a sources file by extension: .yaml/.yml or .csv
func ReadSourcesFile(path string) ([]model.EvidenceSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources file: %w", err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ReadSourcesYAML(f)
	case ".csv":
		return ReadSourcesCSV(f)
	default:
		return nil, fmt.Errorf("unsupported sources file %q (use .yaml, .yml or .csv)", path)
	}
}

// ReadSourcesYAML accepts either a top-level list of sources or a
// mapping with a "sources" list
func ReadSourcesYAML(r io.Reader) ([]model.EvidenceSource, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	var sources []model.EvidenceSource
	if root.Kind == yaml.SequenceNode {
		if err := root.Decode(&sources); err != nil {
			return nil, fmt.Errorf("decode sources: %w", err)
		}
		return sources, nil
	}

	var wrapper struct {
		Sources []model.EvidenceSource `yaml:"sources"`
	}
	if err := root.Decode(&wrapper); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	return wrapper.Sources, nil
}

var csvColumns = []string{"id", "title", "content", "source_name", "source_url", "topic", "reliability_rating"}

// ReadSourcesCSV parses sources from CSV with a header row. The title and
// content columns are required.
func ReadSourcesCSV(r io.Reader) ([]model.EvidenceSource, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv file is empty")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, required := range []string{"title", "content"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("csv must contain a %q column", required)
		}
	}

	var sources []model.EvidenceSource
	var errs *multierror.Error
	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}

		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		src := model.EvidenceSource{
			ID:         field(csvColumns[0]),
			Title:      field(csvColumns[1]),
			Content:    field(csvColumns[2]),
			SourceName: field(csvColumns[3]),
			SourceURL:  field(csvColumns[4]),
			Topic:      field(csvColumns[5]),
		}
		if v := field(csvColumns[6]); v != "" {
			rating, err := strconv.ParseFloat(v, 64)
			if err != nil || rating < 0 || rating > 1 {
				errs = multierror.Append(errs, fmt.Errorf("row %d: invalid reliability_rating %q", row, v))
				continue
			}
			src.ReliabilityRating = rating
		}
		sources = append(sources, src)
	}

	return sources, errs.ErrorOrNil()
}
