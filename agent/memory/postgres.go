package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN         string        `envconfig:"DSN" split_words:"true" required:"true"`
	DialTimeout time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"5s"`
	AutoMigrate bool          `envconfig:"AUTO_MIGRATE" split_words:"true" default:"true"`
}

// studentRow keeps profile and history as jsonb columns so the persisted
// layout matches the JSON schema of Record.
type studentRow struct {
	bun.BaseModel `bun:"table:student_records,alias:sr"`

	StudentID   string                 `bun:"student_id,pk"`
	Profile     *StudentProfile        `bun:"profile,type:jsonb,notnull"`
	QuizHistory map[string]QuizHistory `bun:"quiz_history,type:jsonb,notnull"`
	UpdatedAt   time.Time              `bun:"updated_at,notnull"`
}

func rowFromRecord(rec *Record) (*studentRow, error) {
	if rec == nil || rec.Profile == nil {
		return nil, ErrNilRecord
	}
	if rec.Profile.StudentID == "" {
		return nil, ErrInvalidStudent
	}
	history := rec.QuizHistory
	if history == nil {
		history = map[string]QuizHistory{}
	}
	return &studentRow{
		StudentID:   rec.Profile.StudentID,
		Profile:     rec.Profile,
		QuizHistory: history,
		UpdatedAt:   rec.Profile.UpdatedAt.UTC(),
	}, nil
}

func (r *studentRow) toRecord() (*Record, error) {
	rec := &Record{Profile: r.Profile, QuizHistory: r.QuizHistory}
	if err := rec.normalize(); err != nil {
		return nil, err
	}
	return rec, nil
}

// PostgresPersister stores student records through bun.
type PostgresPersister struct {
	db *bun.DB
}

func NewPostgresPersister(ctx context.Context, cfg PostgresConfig) (*PostgresPersister, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithDialTimeout(cfg.DialTimeout),
	))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	p := &PostgresPersister{db: db}
	if cfg.AutoMigrate {
		if err := p.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return p, nil
}

func NewPostgresPersisterFromDB(db *bun.DB) *PostgresPersister {
	return &PostgresPersister{db: db}
}

func (p *PostgresPersister) Migrate(ctx context.Context) error {
	if _, err := p.db.NewCreateTable().
		Model((*studentRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create student_records: %w", err)
	}
	return nil
}

func (p *PostgresPersister) Load(ctx context.Context, studentID string) (*Record, error) {
	if studentID == "" {
		return nil, ErrInvalidStudent
	}
	row := new(studentRow)
	err := p.db.NewSelect().
		Model(row).
		Where("student_id = ?", studentID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select student record: %w", err)
	}
	return row.toRecord()
}

func (p *PostgresPersister) Save(ctx context.Context, rec *Record) error {
	row, err := rowFromRecord(rec)
	if err != nil {
		return err
	}
	_, err = p.db.NewInsert().
		Model(row).
		On("CONFLICT (student_id) DO UPDATE").
		Set("profile = EXCLUDED.profile").
		Set("quiz_history = EXCLUDED.quiz_history").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert student record: %w", err)
	}
	return nil
}

func (p *PostgresPersister) Close() error {
	return p.db.Close()
}
