// Package audit writes monthly spreadsheet exports of the booking audit tables.
// Exports are read-only: no data is removed.
package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds configuration for the audit service.
type Config struct {
	// ExportDir receives the monthly workbooks. Default: "exports".
	ExportDir string
	// ExportOnStart exports the previous month immediately on Start.
	ExportOnStart bool
	// Location decides month boundaries. Default: UTC.
	Location *time.Location
	Now      func() time.Time
}

// Service exports the previous month's audit data on the first of each month.
type Service struct {
	config   Config
	exporter TableExporter
	writer   func() ExcelWriter
	logger   zerolog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

func NewService(config Config, exporter TableExporter, writerFactory func() ExcelWriter, logger *zerolog.Logger) *Service {
	if config.ExportDir == "" {
		config.ExportDir = "exports"
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if writerFactory == nil {
		writerFactory = NewExcelizeWriter
	}

	return &Service{
		config:   config,
		exporter: exporter,
		writer:   writerFactory,
		logger:   logger.With().Str("component", "audit").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the monthly scheduler.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if s.config.ExportOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.exportPreviousMonth()
		}()
	}

	s.wg.Add(1)
	go s.loop()

	s.logger.Info().Str("export_dir", s.config.ExportDir).Msg("audit service started")
}

// Stop gracefully stops the audit service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("audit service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	nextRun := s.nextFirstOfMonth()
	timer := time.NewTimer(time.Until(nextRun))
	defer timer.Stop()
	s.logger.Info().Time("next_run", nextRun).Msg("next audit export scheduled")

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			s.exportPreviousMonth()

			nextRun = s.nextFirstOfMonth()
			timer.Reset(time.Until(nextRun))
			s.logger.Info().Time("next_run", nextRun).Msg("next audit export scheduled")
		}
	}
}

// nextFirstOfMonth is 00:01 on the first of next month, so late writes of the
// closing month are committed before the export.
func (s *Service) nextFirstOfMonth() time.Time {
	now := s.config.Now().In(s.config.Location)
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, s.config.Location)
}

func (s *Service) exportPreviousMonth() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	now := s.config.Now().In(s.config.Location)
	start, _ := MonthBounds(now)
	if _, err := s.ExportMonth(ctx, start.AddDate(0, -1, 0)); err != nil {
		s.logger.Error().Err(err).Msg("failed to export audit data")
	}
}

// ExportMonth writes one workbook with a sheet per audit table for the month
// containing month, and returns its path.
func (s *Service) ExportMonth(ctx context.Context, month time.Time) (string, error) {
	if s.exporter == nil {
		return "", fmt.Errorf("exporter not configured")
	}
	from, to := MonthBounds(month.In(s.config.Location))

	tables, err := s.exporter.GetTableNames(ctx)
	if err != nil {
		return "", fmt.Errorf("get table names: %w", err)
	}
	if len(tables) == 0 {
		return "", fmt.Errorf("no tables to export")
	}

	excel := s.writer()
	defer excel.Close()

	total := 0
	for _, table := range tables {
		data, columns, err := s.exporter.GetTableData(ctx, table, from, to)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", table, err)
		}
		if err := excel.AddSheet(table); err != nil {
			return "", err
		}
		if err := excel.WriteHeader(columns); err != nil {
			return "", fmt.Errorf("header of %s: %w", table, err)
		}
		for _, row := range data {
			values := make([]interface{}, len(columns))
			for i, col := range columns {
				values[i] = row[col]
			}
			if err := excel.WriteRow(values); err != nil {
				return "", fmt.Errorf("row of %s: %w", table, err)
			}
		}
		total += len(data)
		s.logger.Debug().Str("table", table).Int("rows", len(data)).Msg("exported table")
	}

	if err := os.MkdirAll(s.config.ExportDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(s.config.ExportDir, GenerateFilename(from))
	if err := excel.SaveToFile(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	s.logger.Info().
		Str("path", path).
		Str("month", from.Format("2006-01")).
		Int("rows", total).
		Msg("audit export written")
	return path, nil
}
