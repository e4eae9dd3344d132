package pipeline

import (
	"fmt"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/storage"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/summary"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/table"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/tables"
)

// Artifact kinds.
const (
	KindProcessed         = "processed"
	KindNoOutliers        = "no_outliers"
	KindProcessedParquet  = "processed_parquet"
	KindNoOutliersParquet = "no_outliers_parquet"
	KindSummary           = "summary"
)

// buildArtifacts encodes the full table, the clean table and the summary,
// plus parquet copies when enabled. It also returns the summary text.
func (p *Pipeline) buildArtifacts(ref storage.RunRef, out *Outcome) ([]storage.Artifact, []byte, error) {
	ext := p.cfg.Output.CSVExtension()

	full, err := p.encodeCSV(out.Full)
	if err != nil {
		return nil, nil, fmt.Errorf("encode full table: %w", err)
	}
	clean, err := p.encodeCSV(out.Clean)
	if err != nil {
		return nil, nil, fmt.Errorf("encode clean table: %w", err)
	}

	text := summary.Render(summary.Summary{
		ProcessedAt: ref.Timestamp,
		Source:      ref.Source,
		RowsLoaded:  out.RowsLoaded,
		RowsFull:    out.Full.Len(),
		RowsClean:   out.Clean.Len(),
		Columns:     out.Full.Width(),
		MemoryBytes: out.Full.MemoryFootprint(),
		Dedup:       out.Features.Dedup,
		Outliers:    out.Outliers,
		Metrics:     out.Metrics,
	})

	artifacts := []storage.Artifact{
		{Name: ref.ProcessedName(ext), Kind: KindProcessed, Data: full, Rows: int64(out.Full.Len())},
		{Name: ref.NoOutliersName(ext), Kind: KindNoOutliers, Data: clean, Rows: int64(out.Clean.Len())},
		{Name: ref.SummaryName(), Kind: KindSummary, Data: text},
	}

	if p.cfg.Output.Parquet {
		pcfg := tables.DefaultParquetConfig()
		pcfg.RunID = ref.RunID
		pcfg.ProcessedAt = ref.Timestamp
		if p.cfg.Output.ParquetCompression != "" {
			pcfg.Compression = p.cfg.Output.ParquetCompression
		}
		fullPq, err := tables.EncodeParquet(out.Full, pcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("encode full parquet: %w", err)
		}
		cleanPq, err := tables.EncodeParquet(out.Clean, pcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("encode clean parquet: %w", err)
		}
		artifacts = append(artifacts,
			storage.Artifact{Name: ref.ProcessedName("parquet"), Kind: KindProcessedParquet, Data: fullPq, Rows: int64(out.Full.Len())},
			storage.Artifact{Name: ref.NoOutliersName("parquet"), Kind: KindNoOutliersParquet, Data: cleanPq, Rows: int64(out.Clean.Len())},
		)
	}
	return artifacts, text, nil
}

func (p *Pipeline) encodeCSV(t *table.Table) ([]byte, error) {
	data, err := tables.EncodeCSV(t)
	if err != nil {
		return nil, err
	}
	if p.cfg.Output.Compression == "zstd" {
		return tables.CompressZstd(data)
	}
	return data, nil
}
