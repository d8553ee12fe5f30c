package store

import (
	"database/sql"
	"fmt"
)

// Account is the full stored projection of an account row. Optional
// columns map to pointer fields so JSON output mirrors exactly the
// non-null columns of the row.
type Account struct {
	AccountID    string  `json:"account_id,omitempty"`
	Name         string  `json:"name,omitempty"`
	Status       string  `json:"status,omitempty"`
	IsTNA        *bool   `json:"is_tna,omitempty"`
	CreatedAt    *string `json:"created_at,omitempty"`
	PricingModel *string `json:"pricing_model,omitempty"`

	AddressLine1      *string `json:"address_line1,omitempty"`
	AddressLine2      *string `json:"address_line2,omitempty"`
	AddressCity       *string `json:"address_city,omitempty"`
	AddressState      *string `json:"address_state,omitempty"`
	AddressPostalCode *string `json:"address_postal_code,omitempty"`
	AddressCountry    *string `json:"address_country,omitempty"`

	TotalAmountDue         *float64 `json:"total_amount_due,omitempty"`
	TotalAmountDueThisWeek *float64 `json:"total_amount_due_this_week,omitempty"`
	InvoiceID              *string  `json:"invoice_id,omitempty"`
	InvoiceAmount          *float64 `json:"invoice_amount,omitempty"`
	InvoiceDueDate         *string  `json:"invoice_due_date,omitempty"`
	CurrentBalance         *float64 `json:"current_balance,omitempty"`
	PendingBalance         *float64 `json:"pending_balance,omitempty"`

	PointsEarnedThisQuarter            *int    `json:"points_earned_this_quarter,omitempty"`
	CurrentTier                        *string `json:"current_tier,omitempty"`
	NextTier                           *string `json:"next_tier,omitempty"`
	PointsToNextTier                   *int    `json:"points_to_next_tier,omitempty"`
	QuarterEndDate                     *string `json:"quarter_end_date,omitempty"`
	FreeVialsAvailable                 *int    `json:"free_vials_available,omitempty"`
	RewardsRequiredForNextFreeVial     *int    `json:"rewards_required_for_next_free_vial,omitempty"`
	RewardsRedeemedTowardsNextFreeVial *int    `json:"rewards_redeemed_towards_next_free_vial,omitempty"`
	RewardsStatus                      *string `json:"rewards_status,omitempty"`
	RewardsUpdatedAt                   *string `json:"rewards_updated_at,omitempty"`
	EvoluxLevel                        *string `json:"evolux_level,omitempty"`
}

// FacilityInfo is the compact facility listing joined into an account
// projection.
type FacilityInfo struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`
}

const accountColumns = `account_id, account_name, status, is_tna, created_at, pricing_model,
	address_line1, address_line2, address_city, address_state, address_postal_code, address_country,
	total_amount_due, total_amount_due_this_week, invoice_id, invoice_amount, invoice_due_date,
	current_balance, pending_balance, points_earned_this_quarter, current_tier, next_tier,
	points_to_next_tier, quarter_end_date, free_vials_available, rewards_required_for_next_free_vial,
	rewards_redeemed_towards_next_free_vial, rewards_status, rewards_updated_at, evolux_level`

// GetAccount returns the account with the given id, or sql.ErrNoRows
// when no such account exists.
func (s *Store) GetAccount(accountID string) (*Account, error) {
	row := s.db.QueryRow(s.rebind(
		`SELECT `+accountColumns+` FROM accounts WHERE account_id = ?`), accountID)
	return scanAccount(row)
}

// AccountExists reports whether an account with the given id exists.
func (s *Store) AccountExists(accountID string) (bool, error) {
	var n int
	err := s.db.QueryRow(s.rebind(
		`SELECT COUNT(*) FROM accounts WHERE account_id = ?`), accountID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count accounts: %w", err)
	}
	return n > 0, nil
}

// ListAccountFacilities returns the compact facility list for an account,
// ordered by facility name.
func (s *Store) ListAccountFacilities(accountID string) ([]FacilityInfo, error) {
	rows, err := s.db.Query(s.rebind(`
		SELECT facility_id, facility_name, status
		FROM facilities WHERE account_id = ?
		ORDER BY facility_name
	`), accountID)
	if err != nil {
		return nil, fmt.Errorf("query facilities: %w", err)
	}
	defer rows.Close()

	var infos []FacilityInfo
	for rows.Next() {
		var fi FacilityInfo
		if err := rows.Scan(&fi.ID, &fi.Name, &fi.Status); err != nil {
			return nil, err
		}
		infos = append(infos, fi)
	}
	return infos, rows.Err()
}

// UpsertAccount inserts an account or refreshes name, status, and the
// modification timestamp when the id already exists.
func (s *Store) UpsertAccount(a *Account) error {
	_, err := s.db.Exec(s.rebind(`
		INSERT INTO accounts (`+accountColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			account_name = excluded.account_name,
			status = excluded.status,
			updated_at = excluded.updated_at
	`),
		a.AccountID, a.Name, a.Status, optArg(a.IsTNA), optArg(a.CreatedAt), optArg(a.PricingModel),
		optArg(a.AddressLine1), optArg(a.AddressLine2), optArg(a.AddressCity), optArg(a.AddressState),
		optArg(a.AddressPostalCode), optArg(a.AddressCountry),
		optArg(a.TotalAmountDue), optArg(a.TotalAmountDueThisWeek), optArg(a.InvoiceID),
		optArg(a.InvoiceAmount), optArg(a.InvoiceDueDate), optArg(a.CurrentBalance), optArg(a.PendingBalance),
		optArg(a.PointsEarnedThisQuarter), optArg(a.CurrentTier), optArg(a.NextTier),
		optArg(a.PointsToNextTier), optArg(a.QuarterEndDate), optArg(a.FreeVialsAvailable),
		optArg(a.RewardsRequiredForNextFreeVial), optArg(a.RewardsRedeemedTowardsNextFreeVial),
		optArg(a.RewardsStatus), optArg(a.RewardsUpdatedAt), optArg(a.EvoluxLevel),
		nowRFC3339(),
	)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", a.AccountID, err)
	}
	return nil
}

func scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	var (
		isTNA                       sql.NullBool
		createdAt, pricingModel     sql.NullString
		line1, line2, city, state   sql.NullString
		postal, country             sql.NullString
		totalDue, totalDueWeek      sql.NullFloat64
		invoiceID, invoiceDue       sql.NullString
		invoiceAmount               sql.NullFloat64
		curBalance, pendBalance     sql.NullFloat64
		pointsQuarter, pointsToNext sql.NullInt64
		curTier, nextTier           sql.NullString
		quarterEnd                  sql.NullString
		freeVials, vialReq, vialRed sql.NullInt64
		rewardsStatus, rewardsUpd   sql.NullString
		evolux                      sql.NullString
	)

	err := row.Scan(
		&a.AccountID, &a.Name, &a.Status, &isTNA, &createdAt, &pricingModel,
		&line1, &line2, &city, &state, &postal, &country,
		&totalDue, &totalDueWeek, &invoiceID, &invoiceAmount, &invoiceDue,
		&curBalance, &pendBalance, &pointsQuarter, &curTier, &nextTier,
		&pointsToNext, &quarterEnd, &freeVials, &vialReq, &vialRed,
		&rewardsStatus, &rewardsUpd, &evolux,
	)
	if err != nil {
		return nil, err
	}

	a.IsTNA = nullBool(isTNA)
	a.CreatedAt = nullStr(createdAt)
	a.PricingModel = nullStr(pricingModel)
	a.AddressLine1 = nullStr(line1)
	a.AddressLine2 = nullStr(line2)
	a.AddressCity = nullStr(city)
	a.AddressState = nullStr(state)
	a.AddressPostalCode = nullStr(postal)
	a.AddressCountry = nullStr(country)
	a.TotalAmountDue = nullFloat(totalDue)
	a.TotalAmountDueThisWeek = nullFloat(totalDueWeek)
	a.InvoiceID = nullStr(invoiceID)
	a.InvoiceAmount = nullFloat(invoiceAmount)
	a.InvoiceDueDate = nullStr(invoiceDue)
	a.CurrentBalance = nullFloat(curBalance)
	a.PendingBalance = nullFloat(pendBalance)
	a.PointsEarnedThisQuarter = nullInt(pointsQuarter)
	a.CurrentTier = nullStr(curTier)
	a.NextTier = nullStr(nextTier)
	a.PointsToNextTier = nullInt(pointsToNext)
	a.QuarterEndDate = nullStr(quarterEnd)
	a.FreeVialsAvailable = nullInt(freeVials)
	a.RewardsRequiredForNextFreeVial = nullInt(vialReq)
	a.RewardsRedeemedTowardsNextFreeVial = nullInt(vialRed)
	a.RewardsStatus = nullStr(rewardsStatus)
	a.RewardsUpdatedAt = nullStr(rewardsUpd)
	a.EvoluxLevel = nullStr(evolux)

	return &a, nil
}
