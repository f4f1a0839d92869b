package service

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/yourorg/biportal/internal/domain"
	"github.com/yourorg/biportal/internal/observability/metrics"
	"github.com/yourorg/biportal/pkg/cache"
)

// DatasetService reads per-client spreadsheet files from the data
// directory. Row shape is whatever the first sheet yields.
type DatasetService struct {
	dataDir  string
	rowCache *cache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewDatasetService creates a new dataset service. rowCache may be nil
// to disable caching (tests do this to hit the parser every time).
func NewDatasetService(dataDir string, rowCache *cache.Cache, logger *slog.Logger) *DatasetService {
	if logger == nil {
		logger = slog.Default()
	}

	return &DatasetService{
		dataDir:  dataDir,
		rowCache: rowCache,
		cacheTTL: 5 * time.Minute,
		logger:   logger,
	}
}

// RowsForClient returns the rows of <dataDir>/<clientKey>.xlsx.
// Returns domain.ErrDatasetNotFound if no backing file exists.
func (s *DatasetService) RowsForClient(clientKey string) ([]domain.Row, error) {
	path := filepath.Join(s.dataDir, clientKey+".xlsx")

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDatasetNotFound, clientKey)
		}
		return nil, fmt.Errorf("stat dataset %s: %w", clientKey, err)
	}

	// Cache key includes mtime so an updated file invalidates itself
	cacheKey := fmt.Sprintf("rows:%s:%d", clientKey, info.ModTime().UnixNano())
	if s.rowCache != nil {
		if cached, ok := s.rowCache.Get(cacheKey); ok {
			return cached.([]domain.Row), nil
		}
	}

	rows, err := parseWorkbook(path)
	if err != nil {
		metrics.ObserveDatasetParse("failure")
		return nil, fmt.Errorf("parse dataset %s: %w", clientKey, err)
	}
	metrics.ObserveDatasetParse("success")

	if s.rowCache != nil {
		s.rowCache.Set(cacheKey, rows, s.cacheTTL)
	}
	return rows, nil
}

// AllClientRows enumerates every *.xlsx file in the data directory and
// parses each independently. A parse failure for one file yields an
// empty slice for that key; one bad file never breaks the admin view.
func (s *DatasetService) AllClientRows() (map[string][]domain.Row, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("read data directory: %w", err)
	}

	all := make(map[string][]domain.Row)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".xlsx") {
			continue
		}
		key := strings.TrimSuffix(entry.Name(), ".xlsx")

		rows, err := s.RowsForClient(key)
		if err != nil {
			s.logger.Error("dataset parse failed, returning empty rows",
				slog.String("client_key", key),
				slog.String("error", err.Error()),
			)
			all[key] = []domain.Row{}
			continue
		}
		all[key] = rows
	}

	metrics.SetDatasetFiles(len(all))
	return all, nil
}

// CountFiles returns how many client spreadsheet files are present.
// Used by the janitor worker for the dataset gauge.
func (s *DatasetService) CountFiles() (int, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return 0, fmt.Errorf("read data directory: %w", err)
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".xlsx") {
			count++
		}
	}
	return count, nil
}

// parseWorkbook reads the first sheet: the header row becomes column
// names, every following row becomes one Row. Numeric cells surface as
// float64, everything else stays text.
func parseWorkbook(path string) ([]domain.Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return []domain.Row{}, nil
	}

	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return []domain.Row{}, nil
	}

	header := raw[0]
	rows := make([]domain.Row, 0, len(raw)-1)
	for _, cells := range raw[1:] {
		row := domain.Row{}
		for i, col := range header {
			if col == "" {
				continue
			}
			var value any = ""
			if i < len(cells) {
				value = coerceCell(cells[i])
			}
			row[col] = value
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func coerceCell(cell string) any {
	if cell == "" {
		return ""
	}
	if n, err := strconv.ParseFloat(cell, 64); err == nil {
		return n
	}
	return cell
}
