package chart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"orgchart/internal/chart/models"
	id "orgchart/pkg/domain"
	"orgchart/pkg/platform/sentinel"
)

// Postgres persists charts in PostgreSQL. The single-current-per-org
// invariant is backed by a partial unique index and the revision column
// carries the optimistic-concurrency counter; Execute and ApproveCurrent
// run in one transaction with row locks.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed chart store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const chartColumns = `id, organization_id, sector, version, state, is_current, revision,
	compliance, created_at, updated_at, approved_at, approved_by`

func (s *Postgres) Create(ctx context.Context, chart *models.Chart) error {
	compliance, err := marshalCompliance(chart.Compliance)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO charts (`+chartColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.UUID(chart.ID), uuid.UUID(chart.OrgID), string(chart.Sector), chart.Version,
		string(chart.State), chart.IsCurrent, chart.Revision, compliance,
		chart.CreatedAt, chart.UpdatedAt, chart.ApprovedAt, approvedBy(chart))
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create chart: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, chartID id.ChartID) (*models.Chart, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chartColumns+` FROM charts WHERE id = $1`, uuid.UUID(chartID))
	return scanChart(row)
}

func (s *Postgres) FindCurrentByOrg(ctx context.Context, orgID id.OrgID) (*models.Chart, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chartColumns+` FROM charts WHERE organization_id = $1 AND is_current`, uuid.UUID(orgID))
	return scanChart(row)
}

func (s *Postgres) NextVersion(ctx context.Context, orgID id.OrgID) (int, error) {
	var next int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM charts WHERE organization_id = $1`,
		uuid.UUID(orgID)).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next chart version: %w", err)
	}
	return next, nil
}

// Execute locks the chart row, verifies the expected revision, applies the
// validate/mutate callbacks, and writes back with revision+1.
func (s *Postgres) Execute(ctx context.Context, chartID id.ChartID, expectedRevision int64, validate func(*models.Chart) error, mutate func(*models.Chart)) (*models.Chart, error) {
	var result *models.Chart
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		chart, err := lockChart(ctx, tx, chartID)
		if err != nil {
			return err
		}
		if chart.Revision != expectedRevision {
			return sentinel.ErrRevisionMismatch
		}
		if err := validate(chart); err != nil {
			return err
		}
		mutate(chart)
		chart.Revision++
		if err := updateChart(ctx, tx, chart); err != nil {
			return err
		}
		result = chart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApproveCurrent performs the current-version flip in one transaction.
// The org's chart rows are locked up front in deterministic id order; a
// single-row lock on the target before that sweep would give two approvals
// of different charts opposite lock orders and deadlock. The flip is also
// rejected when the org's current chart is not the one the approver
// observed, so concurrent approvals of different charts cannot both win.
func (s *Postgres) ApproveCurrent(ctx context.Context, chartID id.ChartID, expectedRevision int64, observedCurrent *models.CurrentRef, approve func(*models.Chart) error, supersede func(*models.Chart)) (*models.Chart, error) {
	var result *models.Chart
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var orgID uuid.UUID
		if err := tx.QueryRowContext(ctx,
			`SELECT organization_id FROM charts WHERE id = $1`,
			uuid.UUID(chartID)).Scan(&orgID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("resolve chart organization: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`SELECT id FROM charts WHERE organization_id = $1 ORDER BY id FOR UPDATE`,
			orgID); err != nil {
			return fmt.Errorf("lock org charts: %w", err)
		}
		chart, err := lockChart(ctx, tx, chartID)
		if err != nil {
			return err
		}
		if chart.Revision != expectedRevision {
			return sentinel.ErrRevisionMismatch
		}

		previous, err := currentForUpdate(ctx, tx, chart.OrgID, chartID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		if !currentMatches(observedCurrent, previous) {
			return sentinel.ErrRevisionMismatch
		}

		if err := approve(chart); err != nil {
			return err
		}
		chart.Revision++

		if previous != nil {
			supersede(previous)
			previous.Revision++
			if err := updateChart(ctx, tx, previous); err != nil {
				return err
			}
		}
		if err := updateChart(ctx, tx, chart); err != nil {
			return err
		}
		result = chart
		return nil
	})
	if err != nil {
		if isSerializationFailure(err) {
			return nil, sentinel.ErrRevisionMismatch
		}
		return nil, err
	}
	return result, nil
}

func (s *Postgres) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func lockChart(ctx context.Context, tx *sql.Tx, chartID id.ChartID) (*models.Chart, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+chartColumns+` FROM charts WHERE id = $1 FOR UPDATE`, uuid.UUID(chartID))
	return scanChart(row)
}

func currentForUpdate(ctx context.Context, tx *sql.Tx, orgID id.OrgID, exclude id.ChartID) (*models.Chart, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+chartColumns+` FROM charts
		 WHERE organization_id = $1 AND is_current AND id <> $2 FOR UPDATE`,
		uuid.UUID(orgID), uuid.UUID(exclude))
	return scanChart(row)
}

func updateChart(ctx context.Context, tx *sql.Tx, chart *models.Chart) error {
	compliance, err := marshalCompliance(chart.Compliance)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE charts SET
			state = $2, is_current = $3, revision = $4, compliance = $5,
			updated_at = $6, approved_at = $7, approved_by = $8
		WHERE id = $1`,
		uuid.UUID(chart.ID), string(chart.State), chart.IsCurrent, chart.Revision,
		compliance, chart.UpdatedAt, chart.ApprovedAt, approvedBy(chart))
	if err != nil {
		return fmt.Errorf("update chart: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanChart(row scannable) (*models.Chart, error) {
	var (
		chart      models.Chart
		chartID    uuid.UUID
		orgID      uuid.UUID
		sector     string
		state      string
		compliance []byte
		approvedAt sql.NullTime
		approver   uuid.NullUUID
	)
	err := row.Scan(&chartID, &orgID, &sector, &chart.Version, &state, &chart.IsCurrent,
		&chart.Revision, &compliance, &chart.CreatedAt, &chart.UpdatedAt, &approvedAt, &approver)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan chart: %w", err)
	}
	chart.ID = id.ChartID(chartID)
	chart.OrgID = id.OrgID(orgID)
	chart.Sector = id.Sector(sector)
	parsedState, err := models.ParseChartState(state)
	if err != nil {
		return nil, err
	}
	chart.State = parsedState
	if len(compliance) > 0 {
		var summary models.ComplianceSummary
		if err := json.Unmarshal(compliance, &summary); err != nil {
			return nil, fmt.Errorf("decode compliance summary: %w", err)
		}
		chart.Compliance = &summary
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		chart.ApprovedAt = &t
	}
	if approver.Valid {
		u := id.UserID(approver.UUID)
		chart.ApprovedBy = &u
	}
	return &chart, nil
}

func marshalCompliance(summary *models.ComplianceSummary) ([]byte, error) {
	if summary == nil {
		return nil, nil
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("encode compliance summary: %w", err)
	}
	return data, nil
}

func approvedBy(chart *models.Chart) uuid.NullUUID {
	if chart.ApprovedBy == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*chart.ApprovedBy), Valid: true}
}

// isUniqueViolation matches PostgreSQL's unique_violation SQLSTATE without
// binding to a specific driver error type.
func isUniqueViolation(err error) bool {
	type coder interface{ SQLState() string }
	var c coder
	if errors.As(err, &c) {
		return c.SQLState() == "23505"
	}
	return false
}

// isSerializationFailure matches deadlock_detected (40P01) and
// serialization_failure (40001). On the approve path either one means a
// concurrent writer won; callers should re-read and retry.
func isSerializationFailure(err error) bool {
	type coder interface{ SQLState() string }
	var c coder
	if errors.As(err, &c) {
		state := c.SQLState()
		return state == "40P01" || state == "40001"
	}
	return false
}
