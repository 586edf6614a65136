package syncjob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"surveysync/internal/config"
	"surveysync/internal/features/postgres"
	"surveysync/internal/features/schema"
	"surveysync/internal/features/session"
	"surveysync/internal/features/surveycto"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SourceReader is the slice of the SurveyCTO service the orchestrator needs
type SourceReader interface {
	FetchSubmissions(ctx context.Context, creds session.Credentials, formID string, since time.Time) ([]surveycto.Record, error)
}

// TargetWriter is the slice of the Postgres client the batch loop needs.
// *postgres.Client satisfies it.
type TargetWriter interface {
	TableExists(ctx context.Context, schemaName, tableName string) (bool, error)
	DescribeTable(ctx context.Context, schemaName, tableName string) (*schema.TableDefinition, error)
	CreateTable(ctx context.Context, schemaName, tableName string, columns []schema.ColumnDefinition) error
	FetchExisting(ctx context.Context, schemaName, tableName, keyColumn string, keys []string) (map[string]map[string]string, error)
	InsertRow(ctx context.Context, schemaName, tableName string, row map[string]string) error
	UpdateRow(ctx context.Context, schemaName, tableName, keyColumn string, row map[string]string) error
	Truncate(ctx context.Context, schemaName, tableName string) error
}

type SyncJobService interface {
	Start(ctx context.Context, sessionID string, cfg SyncConfig) (Progress, error)
	GetProgress(jobID string) (Progress, bool)
	Cancel(ctx context.Context, jobID string) error
	ClearTerminalJobs(ctx context.Context) (int, error)
	DeleteJob(ctx context.Context, jobID string) error
	ListJobs(ctx context.Context) ([]JobRecord, error)
	ListProgress() []Progress
}

type SyncJobServiceImpl struct {
	Registry Registry
	History  JobHistoryRepository
	LastSync LastSyncRepository
	Source   SourceReader
	Sessions session.SessionService
	Pg       postgres.PostgresService
	Logger   *zap.Logger

	batchSize int
	errorCap  int
}

func NewSyncJobService(
	registry Registry,
	history JobHistoryRepository,
	lastSync LastSyncRepository,
	source surveycto.SurveyCTOService,
	sessions session.SessionService,
	pg postgres.PostgresService,
	cfg *config.Config,
	logger *zap.Logger,
) SyncJobService {
	return &SyncJobServiceImpl{
		Registry:  registry,
		History:   history,
		LastSync:  lastSync,
		Source:    source,
		Sessions:  sessions,
		Pg:        pg,
		Logger:    logger,
		batchSize: cfg.BatchSize,
		errorCap:  cfg.ErrorCap,
	}
}

// Start validates the configuration, registers a pending job and launches the
// transfer in the background. The returned snapshot is always pending; the
// transfer is observed through GetProgress.
func (s *SyncJobServiceImpl) Start(ctx context.Context, sessionID string, cfg SyncConfig) (Progress, error) {
	if err := s.validateConfig(&cfg); err != nil {
		return Progress{}, err
	}

	info, err := s.Sessions.Resolve(sessionID)
	if err != nil {
		return Progress{}, err
	}

	writer, err := s.Pg.Client(sessionID)
	if err != nil {
		return Progress{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var since time.Time
	if cfg.SyncMode != ModeReplace {
		if meta, err := s.LastSync.Get(ctx, cfg.Source(), cfg.Target()); err == nil && meta != nil {
			since = meta.LastSyncedAt
		}
	}

	job := NewJob(uuid.NewString(), cfg, s.errorCap)
	s.Registry.Put(job)

	record := &JobRecord{
		JobID:  job.ID,
		Name:   jobName(cfg),
		Source: cfg.Source(),
		Target: cfg.Target(),
		Status: StatusPending,
		Config: cfg,
	}
	if err := s.History.Create(ctx, record); err != nil {
		s.Logger.Warn("failed to persist job record", zap.String("jobId", job.ID), zap.Error(err))
	}

	s.Logger.Info("sync job started",
		zap.String("jobId", job.ID),
		zap.String("form", cfg.FormID),
		zap.String("target", cfg.Target()),
		zap.String("mode", string(cfg.SyncMode)))

	go s.execute(context.Background(), job, info.Credentials, writer, since)

	return job.Snapshot(), nil
}

func (s *SyncJobServiceImpl) GetProgress(jobID string) (Progress, bool) {
	job, ok := s.Registry.Get(jobID)
	if !ok {
		return Progress{}, false
	}
	return job.Snapshot(), true
}

// ListProgress returns snapshots of all retained jobs
func (s *SyncJobServiceImpl) ListProgress() []Progress {
	jobs := s.Registry.List()
	out := make([]Progress, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.Snapshot())
	}
	return out
}

// Cancel stops a running job at its next batch boundary. Jobs that are
// pending or already terminal are left alone and ErrNotRunning is returned.
func (s *SyncJobServiceImpl) Cancel(ctx context.Context, jobID string) error {
	job, ok := s.Registry.Get(jobID)
	if !ok {
		return ErrNotRunning
	}
	if err := job.CancelByUser(); err != nil {
		return err
	}
	s.finalize(ctx, job)
	s.Logger.Info("sync job cancelled", zap.String("jobId", jobID))
	return nil
}

// ClearTerminalJobs drops completed, failed and cancelled jobs from the
// registry and the history store. Jobs mid-flight are untouched.
func (s *SyncJobServiceImpl) ClearTerminalJobs(ctx context.Context) (int, error) {
	cleared := 0
	for _, job := range s.Registry.List() {
		if job.Status().Terminal() {
			s.Registry.Delete(job.ID)
			cleared++
		}
	}

	_, err := s.History.DeleteByStatus(ctx, []JobStatus{StatusCompleted, StatusFailed, StatusCancelled})
	if err != nil {
		return cleared, err
	}
	return cleared, nil
}

func (s *SyncJobServiceImpl) DeleteJob(ctx context.Context, jobID string) error {
	s.Registry.Delete(jobID)
	return s.History.Delete(ctx, jobID)
}

func (s *SyncJobServiceImpl) ListJobs(ctx context.Context) ([]JobRecord, error) {
	return s.History.List(ctx)
}

func (s *SyncJobServiceImpl) validateConfig(cfg *SyncConfig) error {
	if strings.TrimSpace(cfg.FormID) == "" {
		return fmt.Errorf("%w: formId is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.TargetSchema) == "" {
		return fmt.Errorf("%w: targetSchema is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Table()) == "" {
		if cfg.CreateNewTable {
			return fmt.Errorf("%w: newTableName is required when createNewTable is set", ErrInvalidConfig)
		}
		return fmt.Errorf("%w: targetTable is required", ErrInvalidConfig)
	}

	switch cfg.SyncMode {
	case ModeInsert, ModeUpsert, ModeReplace:
	default:
		return fmt.Errorf("%w: unsupported sync mode %q", ErrInvalidConfig, cfg.SyncMode)
	}

	if cfg.PrimaryKeyField == "" {
		cfg.PrimaryKeyField = schema.PrimaryKeyField(cfg.Fields, s.Logger)
	}
	if cfg.PrimaryKeyField == "" && cfg.SyncMode != ModeReplace {
		return fmt.Errorf("%w: primaryKeyField is required for %s mode", ErrInvalidConfig, cfg.SyncMode)
	}
	return nil
}

// execute runs the whole transfer for one job. It is the only writer of the
// job's counters; Cancel flips the status and the loop observes that at the
// next batch boundary.
func (s *SyncJobServiceImpl) execute(ctx context.Context, job *Job, creds session.Credentials, writer TargetWriter, since time.Time) {
	cfg := job.Config

	if cfg.CreateNewTable {
		if err := s.createTargetTable(ctx, writer, cfg); err != nil {
			s.fail(ctx, job, err.Error())
			return
		}
	}

	records, err := s.Source.FetchSubmissions(ctx, creds, cfg.FormID, since)
	if err != nil {
		// CooldownError messages carry the machine-parsable retry-after hint
		s.fail(ctx, job, err.Error())
		return
	}

	job.Begin(len(records))
	if err := s.History.UpdateStatus(ctx, job.ID, StatusRunning, ""); err != nil {
		s.Logger.Warn("failed to persist running status", zap.String("jobId", job.ID), zap.Error(err))
	}

	if len(records) == 0 {
		job.Complete()
		s.recordCompletion(ctx, job)
		return
	}

	table, err := writer.DescribeTable(ctx, cfg.TargetSchema, cfg.Table())
	if err != nil {
		s.fail(ctx, job, fmt.Sprintf("failed to read target table: %v", err))
		return
	}
	if table == nil {
		s.fail(ctx, job, fmt.Sprintf("target table %s.%s does not exist", cfg.TargetSchema, cfg.Table()))
		return
	}

	columnsByLower := make(map[string]string, len(table.Columns))
	for _, col := range table.Columns {
		columnsByLower[strings.ToLower(col.Name)] = col.Name
	}

	keyColumn := columnsByLower[strings.ToLower(cfg.PrimaryKeyField)]
	if keyColumn == "" && cfg.SyncMode != ModeReplace {
		s.fail(ctx, job, fmt.Sprintf("primary key column %q not found in target table", cfg.PrimaryKeyField))
		return
	}

	if cfg.SyncMode == ModeReplace {
		if err := writer.Truncate(ctx, cfg.TargetSchema, cfg.Table()); err != nil {
			s.fail(ctx, job, err.Error())
			return
		}
	}

	for start := 0; start < len(records); start += s.batchSize {
		if job.Status() != StatusRunning {
			// Cancelled (or failed) between batches; stop before the next one
			return
		}

		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}

		if err := s.processBatch(ctx, job, writer, columnsByLower, keyColumn, records[start:end]); err != nil {
			s.fail(ctx, job, err.Error())
			return
		}
	}

	if job.Complete() {
		s.recordCompletion(ctx, job)
	}
}

// processBatch writes one batch and commits its counters atomically. The
// returned error is job-level; record-level failures are collected into the
// job's error list and do not stop the batch.
func (s *SyncJobServiceImpl) processBatch(ctx context.Context, job *Job, writer TargetWriter, columnsByLower map[string]string, keyColumn string, batch []surveycto.Record) error {
	cfg := job.Config

	rows := make([]map[string]string, 0, len(batch))
	keys := make([]string, 0, len(batch))
	for i, record := range batch {
		row := projectRecord(record, columnsByLower)
		rows = append(rows, row)
		if keyColumn != "" {
			if key := row[keyColumn]; key != "" {
				keys = append(keys, key)
			} else {
				keys = append(keys, fmt.Sprintf("row-%d", i))
			}
		}
	}

	existing := map[string]map[string]string{}
	if cfg.SyncMode != ModeReplace && len(keys) > 0 {
		var err error
		existing, err = writer.FetchExisting(ctx, cfg.TargetSchema, cfg.Table(), keyColumn, keys)
		if err != nil {
			return fmt.Errorf("target unreachable while probing existing rows: %v", err)
		}
	}

	var inserted, updated, skipped int
	var errs []SyncError

	for _, row := range rows {
		if len(row) == 0 {
			skipped++
			continue
		}

		key := ""
		if keyColumn != "" {
			key = row[keyColumn]
		}

		switch cfg.SyncMode {
		case ModeReplace:
			if err := writer.InsertRow(ctx, cfg.TargetSchema, cfg.Table(), row); err != nil {
				skipped++
				errs = append(errs, SyncError{RecordID: key, Message: err.Error()})
			} else {
				inserted++
			}

		case ModeInsert:
			if _, ok := existing[key]; ok {
				// Duplicates are never an error in insert mode, only a skip
				skipped++
				continue
			}
			if err := writer.InsertRow(ctx, cfg.TargetSchema, cfg.Table(), row); err != nil {
				skipped++
				errs = append(errs, SyncError{RecordID: key, Message: err.Error()})
			} else {
				inserted++
			}

		case ModeUpsert:
			current, ok := existing[key]
			if !ok {
				if err := writer.InsertRow(ctx, cfg.TargetSchema, cfg.Table(), row); err != nil {
					skipped++
					errs = append(errs, SyncError{RecordID: key, Message: err.Error()})
				} else {
					inserted++
				}
				continue
			}
			if rowEqual(row, current) {
				skipped++
				continue
			}
			if err := writer.UpdateRow(ctx, cfg.TargetSchema, cfg.Table(), keyColumn, row); err != nil {
				skipped++
				errs = append(errs, SyncError{RecordID: key, Message: err.Error()})
			} else {
				updated++
			}
		}
	}

	job.ApplyBatch(inserted, updated, skipped, errs)
	return nil
}

func (s *SyncJobServiceImpl) createTargetTable(ctx context.Context, writer TargetWriter, cfg SyncConfig) error {
	columns := make([]schema.ColumnDefinition, 0, len(cfg.Fields))
	for _, field := range cfg.Fields {
		columns = append(columns, schema.ColumnDefinition{
			Name:         field.Name,
			Type:         schema.MapFieldType(field.Type),
			Nullable:     !field.IsPrimaryKey,
			IsPrimaryKey: field.IsPrimaryKey && strings.EqualFold(field.Name, cfg.PrimaryKeyField),
		})
	}
	return writer.CreateTable(ctx, cfg.TargetSchema, cfg.Table(), columns)
}

func (s *SyncJobServiceImpl) fail(ctx context.Context, job *Job, message string) {
	if job.Fail(message) {
		s.Logger.Error("sync job failed", zap.String("jobId", job.ID), zap.String("reason", message))
		s.finalize(ctx, job)
	}
}

func (s *SyncJobServiceImpl) recordCompletion(ctx context.Context, job *Job) {
	if err := s.LastSync.Upsert(ctx, job.Config.Source(), job.Config.Target(), time.Now().UTC()); err != nil {
		s.Logger.Warn("failed to persist last-sync watermark", zap.String("jobId", job.ID), zap.Error(err))
	}
	s.finalize(ctx, job)

	snap := job.Snapshot()
	s.Logger.Info("sync job completed",
		zap.String("jobId", job.ID),
		zap.Int("total", snap.TotalRecords),
		zap.Int("inserted", snap.InsertedRecords),
		zap.Int("updated", snap.UpdatedRecords),
		zap.Int("skipped", snap.SkippedRecords))
}

func (s *SyncJobServiceImpl) finalize(ctx context.Context, job *Job) {
	if err := s.History.UpdateStatus(ctx, job.ID, job.Status(), job.LastError()); err != nil {
		s.Logger.Warn("failed to persist job status", zap.String("jobId", job.ID), zap.Error(err))
	}
}

// projectRecord keeps only the record keys that exist as target columns,
// using the target's column casing. Values become strings; SurveyCTO wide
// JSON is string-valued already.
func projectRecord(record surveycto.Record, columnsByLower map[string]string) map[string]string {
	row := make(map[string]string, len(record))
	for key, value := range record {
		column, ok := columnsByLower[strings.ToLower(key)]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			row[column] = v
		default:
			row[column] = fmt.Sprintf("%v", v)
		}
	}
	return row
}

// rowEqual compares the incoming row against the stored one over the
// incoming row's columns only; store-managed columns don't count.
func rowEqual(row, current map[string]string) bool {
	for col, val := range row {
		if current[col] != val {
			return false
		}
	}
	return true
}

func jobName(cfg SyncConfig) string {
	name := fmt.Sprintf("sync_%s_to_%s.%s", cfg.FormID, cfg.TargetSchema, cfg.Table())
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}
