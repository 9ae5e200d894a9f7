package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/haakonmt/girobatch/internal/domain"
	"github.com/haakonmt/girobatch/internal/models"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so the same query
// set runs inside and outside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries bundles all data access against the donation schema.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns the query set bound to a transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// --- donors & distributions ---

func (q *Queries) CreateDonor(ctx context.Context, donor *models.Donor) error {
	query := `INSERT INTO donors (id, name, email, created_at) VALUES ($1, $2, $3, NOW()) RETURNING created_at`
	if err := q.db.QueryRow(ctx, query, donor.ID, donor.Name, donor.Email).Scan(&donor.CreatedAt); err != nil {
		return fmt.Errorf("failed to create donor: %w", err)
	}
	return nil
}

func (q *Queries) CreateDistribution(ctx context.Context, dist *models.Distribution) error {
	query := `INSERT INTO distributions (id, donor_id, kid, created_at) VALUES ($1, $2, $3, NOW()) RETURNING created_at`
	if err := q.db.QueryRow(ctx, query, dist.ID, dist.DonorID, dist.KID).Scan(&dist.CreatedAt); err != nil {
		return fmt.Errorf("failed to create distribution: %w", err)
	}
	for _, share := range dist.Shares {
		_, err := q.db.Exec(ctx,
			`INSERT INTO distribution_shares (distribution_id, org_id, percent) VALUES ($1, $2, $3)`,
			dist.ID, share.OrgID, share.Percent)
		if err != nil {
			return fmt.Errorf("failed to create distribution share: %w", err)
		}
	}
	return nil
}

// KIDExists reports whether the identifier is already assigned to a
// distribution or an agreement.
func (q *Queries) KIDExists(ctx context.Context, kid string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
		SELECT 1 FROM distributions WHERE kid = $1
		UNION ALL
		SELECT 1 FROM agreements WHERE kid = $1
	)`
	if err := q.db.QueryRow(ctx, query, kid).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check kid existence: %w", err)
	}
	return exists, nil
}

// ReassignKID moves a distribution and its agreements to a new
// identifier. Callers run it inside RunInTx.
func (q *Queries) ReassignKID(ctx context.Context, oldKID, newKID string) error {
	tag, err := q.db.Exec(ctx, `UPDATE distributions SET kid = $2 WHERE kid = $1`, oldKID, newKID)
	if err != nil {
		return fmt.Errorf("failed to reassign distribution kid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	if _, err := q.db.Exec(ctx, `UPDATE agreements SET kid = $2 WHERE kid = $1`, oldKID, newKID); err != nil {
		return fmt.Errorf("failed to reassign agreement kid: %w", err)
	}
	return nil
}

// --- donations ---

// InsertDonation persists a donation. The unique index on
// (kid, method, amount_ore, external_ref) is the idempotence guard;
// violations surface as models.ErrDuplicateDonation.
func (q *Queries) InsertDonation(ctx context.Context, d *models.Donation) error {
	query := `INSERT INTO donations (id, kid, method, amount_ore, external_ref, owner_id, donated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING created_at`
	err := q.db.QueryRow(ctx, query, d.ID, d.KID, d.Method, d.AmountOre, d.ExternalRef, d.OwnerID, d.DonatedAt).
		Scan(&d.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrDuplicateDonation
		}
		return fmt.Errorf("failed to insert donation: %w", err)
	}
	return nil
}

func (q *Queries) CountDonations(ctx context.Context) (int64, error) {
	var n int64
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM donations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count donations: %w", err)
	}
	return n, nil
}

// --- agreements ---

func (q *Queries) CreateAgreement(ctx context.Context, a *models.Agreement) error {
	query := `INSERT INTO agreements (id, kid, donor_id, amount_ore, claim_day, notice, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING created_at`
	err := q.db.QueryRow(ctx, query, a.ID, a.KID, a.DonorID, a.AmountOre, a.ClaimDay, a.Notice, a.Status).
		Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create agreement: %w", err)
	}
	return nil
}

func (q *Queries) GetAgreement(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	a := &models.Agreement{}
	query := `SELECT ag.id, ag.kid, ag.donor_id, d.name, ag.amount_ore, ag.claim_day, ag.notice, ag.status,
			ag.created_at, ag.paused_until, ag.cancelled_at
		FROM agreements ag JOIN donors d ON d.id = ag.donor_id
		WHERE ag.id = $1`
	err := q.db.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.KID, &a.DonorID, &a.DonorName, &a.AmountOre, &a.ClaimDay, &a.Notice, &a.Status,
		&a.CreatedAt, &a.PausedUntil, &a.CancelledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agreement: %w", err)
	}
	return a, nil
}

// GetAgreementByKID resolves a wire payer number to its agreement.
// Payer numbers arrive with leading zeros stripped, so both sides of
// the comparison are trimmed.
func (q *Queries) GetAgreementByKID(ctx context.Context, kid string) (*models.Agreement, error) {
	a := &models.Agreement{}
	query := `SELECT ag.id, ag.kid, ag.donor_id, d.name, ag.amount_ore, ag.claim_day, ag.notice, ag.status,
			ag.created_at, ag.paused_until, ag.cancelled_at
		FROM agreements ag JOIN donors d ON d.id = ag.donor_id
		WHERE ltrim(ag.kid, '0') = ltrim($1, '0')
		ORDER BY ag.created_at DESC
		LIMIT 1`
	err := q.db.QueryRow(ctx, query, kid).Scan(
		&a.ID, &a.KID, &a.DonorID, &a.DonorName, &a.AmountOre, &a.ClaimDay, &a.Notice, &a.Status,
		&a.CreatedAt, &a.PausedUntil, &a.CancelledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agreement by kid: %w", err)
	}
	return a, nil
}

func (q *Queries) UpdateAgreementStatus(ctx context.Context, id uuid.UUID, status string, pausedUntil, cancelledAt *time.Time) error {
	query := `UPDATE agreements SET status = $2, paused_until = $3, cancelled_at = $4 WHERE id = $1`
	tag, err := q.db.Exec(ctx, query, id, status, pausedUntil, cancelledAt)
	if err != nil {
		return fmt.Errorf("failed to update agreement status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (q *Queries) UpdateAgreementAmount(ctx context.Context, id uuid.UUID, amountOre int64) error {
	tag, err := q.db.Exec(ctx, `UPDATE agreements SET amount_ore = $2 WHERE id = $1`, id, amountOre)
	if err != nil {
		return fmt.Errorf("failed to update agreement amount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (q *Queries) UpdateAgreementClaimDay(ctx context.Context, id uuid.UUID, claimDay int) error {
	tag, err := q.db.Exec(ctx, `UPDATE agreements SET claim_day = $2 WHERE id = $1`, id, claimDay)
	if err != nil {
		return fmt.Errorf("failed to update agreement claim day: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListClaimableAgreements returns active agreements whose claim day
// matches, optionally merged with month-end sentinel agreements.
func (q *Queries) ListClaimableAgreements(ctx context.Context, claimDay int, includeMonthEnd bool) ([]models.Agreement, error) {
	query := `SELECT ag.id, ag.kid, ag.donor_id, d.name, ag.amount_ore, ag.claim_day, ag.notice, ag.status,
			ag.created_at, ag.paused_until, ag.cancelled_at
		FROM agreements ag JOIN donors d ON d.id = ag.donor_id
		WHERE ag.status = $1 AND (ag.claim_day = $2 OR ($3 AND ag.claim_day = $4))
		ORDER BY ag.created_at`
	rows, err := q.db.Query(ctx, query, domain.AgreementStatusActive, claimDay, includeMonthEnd, domain.ClaimDayMonthEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list claimable agreements: %w", err)
	}
	defer rows.Close()

	var out []models.Agreement
	for rows.Next() {
		var a models.Agreement
		if err := rows.Scan(&a.ID, &a.KID, &a.DonorID, &a.DonorName, &a.AmountOre, &a.ClaimDay, &a.Notice,
			&a.Status, &a.CreatedAt, &a.PausedUntil, &a.CancelledAt); err != nil {
			return nil, fmt.Errorf("failed to scan agreement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- charges ---

func (q *Queries) CreateCharge(ctx context.Context, c *models.Charge) error {
	query := `INSERT INTO charges (id, agreement_id, amount_ore, due_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING created_at, updated_at`
	err := q.db.QueryRow(ctx, query, c.ID, c.AgreementID, c.AmountOre, c.DueDate, c.Status).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create charge: %w", err)
	}
	return nil
}

func (q *Queries) GetCharge(ctx context.Context, id uuid.UUID) (*models.Charge, error) {
	c := &models.Charge{}
	query := `SELECT id, agreement_id, amount_ore, due_date, status, created_at, updated_at FROM charges WHERE id = $1`
	err := q.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.AgreementID, &c.AmountOre, &c.DueDate, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get charge: %w", err)
	}
	return c, nil
}

func (q *Queries) UpdateChargeStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := q.db.Exec(ctx, `UPDATE charges SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update charge status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (q *Queries) ListOpenCharges(ctx context.Context, agreementID uuid.UUID) ([]models.Charge, error) {
	query := `SELECT id, agreement_id, amount_ore, due_date, status, created_at, updated_at
		FROM charges
		WHERE agreement_id = $1 AND status IN ($2, $3)
		ORDER BY due_date`
	rows, err := q.db.Query(ctx, query, agreementID, domain.ChargeStatusPending, domain.ChargeStatusDue)
	if err != nil {
		return nil, fmt.Errorf("failed to list open charges: %w", err)
	}
	defer rows.Close()

	var out []models.Charge
	for rows.Next() {
		var c models.Charge
		if err := rows.Scan(&c.ID, &c.AgreementID, &c.AmountOre, &c.DueDate, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan charge: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListChargesDueOn returns every charge in the given status due on the
// given date, the set one withdrawal file collects.
func (q *Queries) ListChargesDueOn(ctx context.Context, dueDate time.Time, status string) ([]models.Charge, error) {
	query := `SELECT id, agreement_id, amount_ore, due_date, status, created_at, updated_at
		FROM charges
		WHERE due_date = $1 AND status = $2
		ORDER BY created_at`
	rows, err := q.db.Query(ctx, query, dueDate, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list charges due: %w", err)
	}
	defer rows.Close()

	var out []models.Charge
	for rows.Next() {
		var c models.Charge
		if err := rows.Scan(&c.ID, &c.AgreementID, &c.AmountOre, &c.DueDate, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan charge: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindChargeForCollection matches a bank settlement or rejection record
// back to its due charge by payer number and collection date.
func (q *Queries) FindChargeForCollection(ctx context.Context, kid string, dueDate time.Time) (*models.Charge, error) {
	c := &models.Charge{}
	query := `SELECT c.id, c.agreement_id, c.amount_ore, c.due_date, c.status, c.created_at, c.updated_at
		FROM charges c JOIN agreements ag ON ag.id = c.agreement_id
		WHERE ltrim(ag.kid, '0') = ltrim($1, '0') AND c.due_date = $2 AND c.status = $3
		ORDER BY c.created_at
		LIMIT 1`
	err := q.db.QueryRow(ctx, query, kid, dueDate, domain.ChargeStatusDue).
		Scan(&c.ID, &c.AgreementID, &c.AmountOre, &c.DueDate, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find charge for collection: %w", err)
	}
	return c, nil
}

func (q *Queries) ChargeExists(ctx context.Context, agreementID uuid.UUID, dueDate time.Time) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM charges WHERE agreement_id = $1 AND due_date = $2 AND status <> $3)`
	if err := q.db.QueryRow(ctx, query, agreementID, dueDate, domain.ChargeStatusCancelled).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check charge existence: %w", err)
	}
	return exists, nil
}

// --- shipments, rules, run log ---

func (q *Queries) CreateShipment(ctx context.Context, s *models.Shipment) error {
	query := `INSERT INTO shipments (id, num_claims, sum_ore, min_due_date, max_due_date, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING seq, created_at`
	err := q.db.QueryRow(ctx, query, s.ID, s.NumClaims, s.SumOre, s.MinDueDate, s.MaxDueDate).
		Scan(&s.Seq, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create shipment: %w", err)
	}
	return nil
}

func (q *Queries) ListMatchRules(ctx context.Context) ([]models.MatchRule, error) {
	rows, err := q.db.Query(ctx, `SELECT id, location, message, resolve_kid, created_at FROM match_rules ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list match rules: %w", err)
	}
	defer rows.Close()

	var out []models.MatchRule
	for rows.Next() {
		var r models.MatchRule
		if err := rows.Scan(&r.ID, &r.Location, &r.Message, &r.ResolveKID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) AppendLogEntry(ctx context.Context, e *models.LogEntry) error {
	query := `INSERT INTO run_log (job, result, message, valid, ignored, invalid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id, created_at`
	err := q.db.QueryRow(ctx, query, e.Job, e.Result, e.Message, e.Valid, e.Ignored, e.Invalid).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}
