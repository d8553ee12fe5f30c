package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// Facility is the full stored projection of a facility row, including
// the owning account's name and status joined in.
type Facility struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`

	HasSignedMedicalLiabilityAgreement *bool   `json:"has_signed_medical_liability_agreement,omitempty"`
	MedicalLicenseID                   *string `json:"medical_license_id,omitempty"`
	MedicalLicenseState                *string `json:"medical_license_state,omitempty"`
	MedicalLicenseNumber               *string `json:"medical_license_number,omitempty"`
	MedicalLicenseInvolvement          *string `json:"medical_license_involvement,omitempty"`
	MedicalLicenseExpirationDate       *string `json:"medical_license_expiration_date,omitempty"`
	MedicalLicenseIsExpired            *bool   `json:"medical_license_is_expired,omitempty"`
	MedicalLicenseStatus               *string `json:"medical_license_status,omitempty"`
	MedicalLicenseOwnerFirstName       *string `json:"medical_license_owner_first_name,omitempty"`
	MedicalLicenseOwnerLastName        *string `json:"medical_license_owner_last_name,omitempty"`

	AccountID                          string  `json:"account_id,omitempty"`
	AccountName                        *string `json:"account_name,omitempty"`
	AccountStatus                      *string `json:"account_status,omitempty"`
	AccountHasSignedFinancialAgreement *bool   `json:"account_has_signed_financial_agreement,omitempty"`
	AccountHasAcceptedJetTerms         *bool   `json:"account_has_accepted_jet_terms,omitempty"`

	AgreementStatus   *string `json:"agreement_status,omitempty"`
	AgreementSignedAt *string `json:"agreement_signed_at,omitempty"`
	AgreementType     *string `json:"agreement_type,omitempty"`

	ShippingAddressLine1      *string `json:"shipping_address_line1,omitempty"`
	ShippingAddressLine2      *string `json:"shipping_address_line2,omitempty"`
	ShippingAddressCity       *string `json:"shipping_address_city,omitempty"`
	ShippingAddressState      *string `json:"shipping_address_state,omitempty"`
	ShippingAddressZip        *string `json:"shipping_address_zip,omitempty"`
	ShippingAddressCommercial *bool   `json:"shipping_address_commercial,omitempty"`
	Sponsored                 *bool   `json:"sponsored,omitempty"`
}

// FacilityFilter is a conjunctive filter for FindFacilities. Empty
// fields are not applied.
type FacilityFilter struct {
	FacilityID string
	AccountID  string
}

const facilityColumns = `f.facility_id, f.facility_name, f.status,
	f.has_signed_medical_liability_agreement, f.medical_license_id, f.medical_license_state,
	f.medical_license_number, f.medical_license_involvement, f.medical_license_expiration_date,
	f.medical_license_is_expired, f.medical_license_status, f.medical_license_owner_first_name,
	f.medical_license_owner_last_name, f.account_id, a.account_name, a.status,
	f.account_has_signed_financial_agreement, f.account_has_accepted_jet_terms,
	f.agreement_status, f.agreement_signed_at, f.agreement_type,
	f.shipping_address_line1, f.shipping_address_line2, f.shipping_address_city,
	f.shipping_address_state, f.shipping_address_zip, f.shipping_address_commercial, f.sponsored`

// FindFacilities returns all facilities matching the filter, joined with
// their owning account's name and status. At least one filter field must
// be set.
func (s *Store) FindFacilities(filter FacilityFilter) ([]*Facility, error) {
	var conds []string
	var args []any

	if filter.FacilityID != "" {
		conds = append(conds, "f.facility_id = ?")
		args = append(args, filter.FacilityID)
	}
	if filter.AccountID != "" {
		conds = append(conds, "f.account_id = ?")
		args = append(args, filter.AccountID)
	}
	if len(conds) == 0 {
		return nil, fmt.Errorf("facility filter requires facility_id or account_id")
	}

	query := `
		SELECT ` + facilityColumns + `
		FROM facilities f
		LEFT JOIN accounts a ON f.account_id = a.account_id
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY f.facility_name`

	rows, err := s.db.Query(s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query facilities: %w", err)
	}
	defer rows.Close()

	var facilities []*Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, err
		}
		facilities = append(facilities, f)
	}
	return facilities, rows.Err()
}

// FacilityExists reports whether a facility with the given id exists.
func (s *Store) FacilityExists(facilityID string) (bool, error) {
	var n int
	err := s.db.QueryRow(s.rebind(
		`SELECT COUNT(*) FROM facilities WHERE facility_id = ?`), facilityID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count facilities: %w", err)
	}
	return n > 0, nil
}

// FacilityAccount returns the owning account id for a facility, or
// sql.ErrNoRows when the facility does not exist.
func (s *Store) FacilityAccount(facilityID string) (string, error) {
	var accountID string
	err := s.db.QueryRow(s.rebind(
		`SELECT account_id FROM facilities WHERE facility_id = ?`), facilityID).Scan(&accountID)
	if err != nil {
		return "", err
	}
	return accountID, nil
}

// UpsertFacility inserts a facility or refreshes name, status, and the
// modification timestamp when the id already exists.
func (s *Store) UpsertFacility(f *Facility) error {
	_, err := s.db.Exec(s.rebind(`
		INSERT INTO facilities (
			facility_id, facility_name, status, account_id,
			has_signed_medical_liability_agreement, medical_license_id, medical_license_state,
			medical_license_number, medical_license_involvement, medical_license_expiration_date,
			medical_license_is_expired, medical_license_status, medical_license_owner_first_name,
			medical_license_owner_last_name, account_has_signed_financial_agreement,
			account_has_accepted_jet_terms, agreement_status, agreement_signed_at, agreement_type,
			shipping_address_line1, shipping_address_line2, shipping_address_city,
			shipping_address_state, shipping_address_zip, shipping_address_commercial,
			sponsored, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(facility_id) DO UPDATE SET
			facility_name = excluded.facility_name,
			status = excluded.status,
			updated_at = excluded.updated_at
	`),
		f.ID, f.Name, f.Status, f.AccountID,
		optArg(f.HasSignedMedicalLiabilityAgreement), optArg(f.MedicalLicenseID), optArg(f.MedicalLicenseState),
		optArg(f.MedicalLicenseNumber), optArg(f.MedicalLicenseInvolvement), optArg(f.MedicalLicenseExpirationDate),
		optArg(f.MedicalLicenseIsExpired), optArg(f.MedicalLicenseStatus), optArg(f.MedicalLicenseOwnerFirstName),
		optArg(f.MedicalLicenseOwnerLastName), optArg(f.AccountHasSignedFinancialAgreement),
		optArg(f.AccountHasAcceptedJetTerms), optArg(f.AgreementStatus), optArg(f.AgreementSignedAt), optArg(f.AgreementType),
		optArg(f.ShippingAddressLine1), optArg(f.ShippingAddressLine2), optArg(f.ShippingAddressCity),
		optArg(f.ShippingAddressState), optArg(f.ShippingAddressZip), optArg(f.ShippingAddressCommercial),
		optArg(f.Sponsored), nowRFC3339(),
	)
	if err != nil {
		return fmt.Errorf("upsert facility %s: %w", f.ID, err)
	}
	return nil
}

func scanFacility(rows *sql.Rows) (*Facility, error) {
	var f Facility
	var (
		hasLiability, licExpired    sql.NullBool
		licID, licState, licNumber  sql.NullString
		licInvolvement, licExp      sql.NullString
		licStatus, licFirst, licLast sql.NullString
		acctName, acctStatus        sql.NullString
		hasFinancial, acceptedJet   sql.NullBool
		agrStatus, agrSigned, agrType sql.NullString
		ship1, ship2, shipCity      sql.NullString
		shipState, shipZip          sql.NullString
		shipCommercial, sponsored   sql.NullBool
	)

	err := rows.Scan(
		&f.ID, &f.Name, &f.Status,
		&hasLiability, &licID, &licState, &licNumber, &licInvolvement, &licExp,
		&licExpired, &licStatus, &licFirst, &licLast,
		&f.AccountID, &acctName, &acctStatus,
		&hasFinancial, &acceptedJet,
		&agrStatus, &agrSigned, &agrType,
		&ship1, &ship2, &shipCity, &shipState, &shipZip, &shipCommercial, &sponsored,
	)
	if err != nil {
		return nil, err
	}

	f.HasSignedMedicalLiabilityAgreement = nullBool(hasLiability)
	f.MedicalLicenseID = nullStr(licID)
	f.MedicalLicenseState = nullStr(licState)
	f.MedicalLicenseNumber = nullStr(licNumber)
	f.MedicalLicenseInvolvement = nullStr(licInvolvement)
	f.MedicalLicenseExpirationDate = nullStr(licExp)
	f.MedicalLicenseIsExpired = nullBool(licExpired)
	f.MedicalLicenseStatus = nullStr(licStatus)
	f.MedicalLicenseOwnerFirstName = nullStr(licFirst)
	f.MedicalLicenseOwnerLastName = nullStr(licLast)
	f.AccountName = nullStr(acctName)
	f.AccountStatus = nullStr(acctStatus)
	f.AccountHasSignedFinancialAgreement = nullBool(hasFinancial)
	f.AccountHasAcceptedJetTerms = nullBool(acceptedJet)
	f.AgreementStatus = nullStr(agrStatus)
	f.AgreementSignedAt = nullStr(agrSigned)
	f.AgreementType = nullStr(agrType)
	f.ShippingAddressLine1 = nullStr(ship1)
	f.ShippingAddressLine2 = nullStr(ship2)
	f.ShippingAddressCity = nullStr(shipCity)
	f.ShippingAddressState = nullStr(shipState)
	f.ShippingAddressZip = nullStr(shipZip)
	f.ShippingAddressCommercial = nullBool(shipCommercial)
	f.Sponsored = nullBool(sponsored)

	return &f, nil
}
