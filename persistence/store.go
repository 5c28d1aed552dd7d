package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/crewflow/collaboration"
	"github.com/BaSui01/crewflow/types"
)

// =============================================================================
// 🗄️ 运行历史存储
// =============================================================================

// RunRecord 一次编排运行的持久化记录
type RunRecord struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     string `gorm:"uniqueIndex;size:64"`
	Request   string
	Plan      string
	Strategy  string `gorm:"size:32"`
	Summary   string
	TaskCount int
	CreatedAt time.Time

	Tasks []TaskRecord `gorm:"foreignKey:RunRecordID;constraint:OnDelete:CASCADE"`
}

// TaskRecord 运行中单个任务的终态
type TaskRecord struct {
	ID           uint   `gorm:"primaryKey"`
	RunRecordID  uint   `gorm:"index"`
	TaskID       string `gorm:"size:64"`
	Agent        string `gorm:"size:64"`
	Description  string
	Dependencies string
	Status       string `gorm:"size:16"`
	Result       string
	Err          string
	BlockReason  string `gorm:"size:32"`
	DurationMS   int64
}

// StoreConfig 存储配置
type StoreConfig struct {
	// sqlite 文件路径，":memory:" 表示内存库
	Path string `yaml:"path" json:"path"`
}

// RunStore 将编排结果写入 sqlite，并支持按 RunID 回查
type RunStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRunStore 打开（必要时创建）sqlite 库并迁移表结构
func NewRunStore(cfg StoreConfig, logger *zap.Logger) (*RunStore, error) {
	if cfg.Path == "" {
		cfg.Path = "crewflow.db"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	if err := db.AutoMigrate(&RunRecord{}, &TaskRecord{}); err != nil {
		return nil, fmt.Errorf("migrate run store: %w", err)
	}

	logger.Info("run store initialized", zap.String("path", cfg.Path))

	return &RunStore{
		db:     db,
		logger: logger.With(zap.String("component", "run_store")),
	}, nil
}

// SaveOutcome 持久化一次完整的编排结果
func (s *RunStore) SaveOutcome(ctx context.Context, request string, outcome *collaboration.Outcome) error {
	if outcome == nil {
		return fmt.Errorf("outcome cannot be nil")
	}

	record := RunRecord{
		RunID:     outcome.RunID,
		Request:   request,
		Plan:      outcome.Plan,
		Strategy:  outcome.Strategy,
		Summary:   outcome.Summary,
		TaskCount: len(outcome.Tasks),
		Tasks:     make([]TaskRecord, 0, len(outcome.Tasks)),
	}
	for _, snap := range outcome.Tasks {
		record.Tasks = append(record.Tasks, TaskRecord{
			TaskID:       snap.ID,
			Agent:        snap.Agent,
			Description:  snap.Description,
			Dependencies: strings.Join(snap.Dependencies, ","),
			Status:       string(snap.Status),
			Result:       snap.Result,
			Err:          snap.Err,
			BlockReason:  string(snap.BlockReason),
			DurationMS:   snap.Duration.Milliseconds(),
		})
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("save outcome %s: %w", outcome.RunID, err)
	}

	s.logger.Debug("outcome saved",
		zap.String("run_id", outcome.RunID),
		zap.Int("tasks", record.TaskCount),
	)
	return nil
}

// GetRun 按 RunID 读取运行记录（含任务列表）
func (s *RunStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	var record RunRecord
	err := s.db.WithContext(ctx).
		Preload("Tasks").
		Where("run_id = ?", runID).
		First(&record).Error
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return &record, nil
}

// ListRuns 按时间倒序返回最近 limit 条运行记录（不含任务明细）
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []RunRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return records, nil
}

// Snapshot 将任务记录还原为快照形式
func (r *TaskRecord) Snapshot() types.TaskSnapshot {
	var deps []string
	if r.Dependencies != "" {
		deps = strings.Split(r.Dependencies, ",")
	}
	return types.TaskSnapshot{
		ID:           r.TaskID,
		Agent:        r.Agent,
		Description:  r.Description,
		Dependencies: deps,
		Status:       types.TaskStatus(r.Status),
		Result:       r.Result,
		Err:          r.Err,
		BlockReason:  types.BlockReason(r.BlockReason),
		Duration:     time.Duration(r.DurationMS) * time.Millisecond,
	}
}

// Close 关闭底层数据库连接
func (s *RunStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
