package storage

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/config"
	"github.com/iWorld-y/filing_radar/app/filing_radar/pkg/model"
)

const table = "report_outputs"

var columns = []string{
	"id", "subject", "filing_key", "doc_type", "period_end", "filed_date", "source_url", "company",
	"schema_version", "report_json", "rendered", "model", "error_state", "error_message",
	"consensus_json", "actuals_json", "surprise_json", "reaction_json", "narrative_json",
	"created_at", "updated_at",
}

// Storage 生成记录的持久化；每次生成一条记录，按创建时间取最新
type Storage struct {
	db      *stdsql.DB
	dialect string

	mu       sync.Mutex
	lastNano int64
	now      func() time.Time
}

// NewStorage 按配置打开数据库并建表
func NewStorage(cfg config.DBConfig) (*Storage, error) {
	var (
		driver, dsn, d string
	)
	switch cfg.Driver {
	case "postgres":
		driver, dsn, d = "postgres", cfg.PostgresDSN(), dialect.Postgres
	case "sqlite", "":
		driver, dsn, d = "sqlite", cfg.DSN, dialect.SQLite
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", cfg.Driver)
	}

	db, err := stdsql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if d == dialect.SQLite {
		// SQLite 只允许单个写连接，内存库在多连接下也不共享
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s, err := NewWithDB(db, d)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB 使用已打开的连接
func NewWithDB(db *stdsql.DB, d string) (*Storage, error) {
	s := &Storage{db: db, dialect: d, now: time.Now}
	if err := s.initSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close 关闭连接
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS report_outputs (
			id TEXT PRIMARY KEY,
			subject TEXT NOT NULL,
			filing_key TEXT NOT NULL,
			doc_type TEXT NOT NULL DEFAULT '',
			period_end TEXT NOT NULL DEFAULT '',
			filed_date TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			schema_version TEXT NOT NULL DEFAULT '',
			report_json TEXT NOT NULL DEFAULT '',
			rendered TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			error_state TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			consensus_json TEXT NOT NULL DEFAULT '',
			actuals_json TEXT NOT NULL DEFAULT '',
			surprise_json TEXT NOT NULL DEFAULT '',
			reaction_json TEXT NOT NULL DEFAULT '',
			narrative_json TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_report_outputs_filing ON report_outputs (filing_key, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_report_outputs_subject ON report_outputs (subject, period_end)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// querier 同时适配 *sql.DB 与 *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*stdsql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (stdsql.Result, error)
}

// Latest 某个文件最新的一条记录，没有时返回 nil, nil
func (s *Storage) Latest(ctx context.Context, filingKey string) (*model.ReportOutput, error) {
	b := sql.Dialect(s.dialect)
	q, args := b.Select(columns...).
		From(b.Table(table)).
		Where(sql.EQ("filing_key", filingKey)).
		OrderBy(sql.Desc("created_at")).
		Limit(1).
		Query()
	return s.queryOne(ctx, s.db, q, args)
}

// PriorForSubject 同一标的中除当前文件外报告期最近、且带有报告的记录
func (s *Storage) PriorForSubject(ctx context.Context, subject, excludeFilingKey string) (*model.ReportOutput, error) {
	b := sql.Dialect(s.dialect)
	q, args := b.Select(columns...).
		From(b.Table(table)).
		Where(sql.And(
			sql.EQ("subject", subject),
			sql.NEQ("filing_key", excludeFilingKey),
			sql.NEQ("report_json", ""),
			sql.NEQ("error_state", string(model.ErrorGeneration)),
		)).
		OrderBy(sql.Desc("period_end"), sql.Desc("created_at")).
		Limit(1).
		Query()
	return s.queryOne(ctx, s.db, q, args)
}

// Save 写入记录：ID 为空时新建一条，否则在事务内读出原记录、合并新字段后整体更新
func (s *Storage) Save(ctx context.Context, rec *model.ReportOutput) error {
	now := s.tick()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
		rec.CreatedAt = now
		rec.UpdatedAt = now
		return s.insert(ctx, s.db, rec)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := s.mergeInTx(ctx, tx, rec, now); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: %v", err, rerr)
		}
		return err
	}
	return tx.Commit()
}

func (s *Storage) mergeInTx(ctx context.Context, tx *stdsql.Tx, rec *model.ReportOutput, now time.Time) error {
	b := sql.Dialect(s.dialect)
	sel := b.Select(columns...).From(b.Table(table)).Where(sql.EQ("id", rec.ID))
	if s.dialect == dialect.Postgres {
		sel = sel.ForUpdate()
	}
	q, args := sel.Query()
	current, err := s.queryOne(ctx, tx, q, args)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("report output %s not found", rec.ID)
	}

	rec.UpdatedAt = now
	current.Absorb(rec)
	vals, err := encode(current)
	if err != nil {
		return err
	}

	upd := b.Update(table)
	for i, c := range columns {
		if c == "id" || c == "created_at" {
			continue
		}
		upd = upd.Set(c, vals[i])
	}
	uq, uargs := upd.Where(sql.EQ("id", rec.ID)).Query()
	if _, err := tx.ExecContext(ctx, uq, uargs...); err != nil {
		return fmt.Errorf("update report output: %w", err)
	}
	*rec = *current
	return nil
}

func (s *Storage) insert(ctx context.Context, q querier, rec *model.ReportOutput) error {
	vals, err := encode(rec)
	if err != nil {
		return err
	}
	query, args := sql.Dialect(s.dialect).Insert(table).Columns(columns...).Values(vals...).Query()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert report output: %w", err)
	}
	return nil
}

func (s *Storage) queryOne(ctx context.Context, q querier, query string, args []any) (*model.ReportOutput, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	rec, err := scan(rows)
	if err != nil {
		return nil, err
	}
	return rec, rows.Err()
}

// tick 返回严格递增的时间，保证同一进程内的记录顺序
func (s *Storage) tick() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.now().UnixNano()
	if n <= s.lastNano {
		n = s.lastNano + 1
	}
	s.lastNano = n
	return time.Unix(0, n).UTC()
}

func encode(r *model.ReportOutput) ([]any, error) {
	blobs := make([]string, 6)
	for i, v := range []any{r.Report, r.Consensus, r.Actuals, r.Surprise, r.Reaction, r.Narrative} {
		s, err := encodeJSON(v)
		if err != nil {
			return nil, err
		}
		blobs[i] = s
	}
	return []any{
		r.ID, r.Ref.Subject, r.Ref.FilingKey, r.Ref.DocType, r.Ref.PeriodEnd, r.Ref.FiledDate, r.Ref.SourceURL, r.Ref.Company,
		r.SchemaVersion, blobs[0], cleanText(r.Rendered), r.Model, string(r.ErrorState), cleanText(r.ErrorMessage),
		blobs[1], blobs[2], blobs[3], blobs[4], blobs[5],
		r.CreatedAt.UnixNano(), r.UpdatedAt.UnixNano(),
	}, nil
}

// encodeJSON nil 指针存为空串
func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return "", nil
	}
	return cleanText(string(data)), nil
}

func scan(rows *stdsql.Rows) (*model.ReportOutput, error) {
	var (
		r                                   model.ReportOutput
		errState                            string
		report, cons, act, sur, react, narr string
		createdAt, updatedAt                int64
	)
	if err := rows.Scan(
		&r.ID, &r.Ref.Subject, &r.Ref.FilingKey, &r.Ref.DocType, &r.Ref.PeriodEnd, &r.Ref.FiledDate, &r.Ref.SourceURL, &r.Ref.Company,
		&r.SchemaVersion, &report, &r.Rendered, &r.Model, &errState, &r.ErrorMessage,
		&cons, &act, &sur, &react, &narr,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	r.ErrorState = model.ErrorState(errState)
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	r.UpdatedAt = time.Unix(0, updatedAt).UTC()

	err := errors.Join(
		decodeJSON(report, &r.Report),
		decodeJSON(cons, &r.Consensus),
		decodeJSON(act, &r.Actuals),
		decodeJSON(sur, &r.Surprise),
		decodeJSON(react, &r.Reaction),
		decodeJSON(narr, &r.Narrative),
	)
	if err != nil {
		return nil, fmt.Errorf("decode report output %s: %w", r.ID, err)
	}
	return &r, nil
}

func decodeJSON[T any](s string, dst **T) error {
	if s == "" {
		return nil
	}
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

// cleanText 移除无效的 UTF-8 字符与 NULL 字节，PostgreSQL 文本字段不接受它们
func cleanText(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return strings.ReplaceAll(s, "\x00", "")
}
