package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/reservas/pkg/reservas"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolationCode   = "23505"
	mysqlDuplicateEntryCode = 1062
	sqliteConstraintCode    = 19
	errorOperationStore     = "store"
	errorSubjectSetting     = "setting"
	errorSubjectReservation = "reservation"
	errorSubjectOccupancy   = "occupancy"
	errorSubjectOutbox      = "outbox"
	errorCodeCount          = "count"
	errorCodeCreate         = "create"
	errorCodeDelete         = "delete"
	errorCodeDuplicate      = "duplicate"
	errorCodeEncode         = "encode"
	errorCodeGet            = "get"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeSum            = "sum"
	errorCodeUpdate         = "update"
	errorCodeUpsert         = "upsert"
)

// Store implements reservas.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates every table the store uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore reservas.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) GetSetting(ctx context.Context, key string) (reservas.SettingEntry, bool, error) {
	var row SystemSetting
	err := store.db.WithContext(ctx).Where("setting_key = ?", key).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reservas.SettingEntry{}, false, nil
		}
		return reservas.SettingEntry{}, false, wrapStoreError(errorSubjectSetting, errorCodeGet, err)
	}
	return reservas.SettingEntry{Key: row.Key, Value: row.Value, Description: row.Description}, true, nil
}

func (store *Store) UpsertSetting(ctx context.Context, entry reservas.SettingEntry) error {
	row := SystemSetting{
		Key:         entry.Key,
		Value:       entry.Value,
		Description: entry.Description,
		UpdatedAt:   time.Now().UTC(),
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "setting_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return wrapStoreError(errorSubjectSetting, errorCodeUpsert, err)
	}
	return nil
}

func (store *Store) SumPartySize(ctx context.Context, slot reservas.Slot, exclude reservas.ReservationID) (int, error) {
	var sum sqlSum
	query := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Select("coalesce(sum(quantidade_cadeiras),0) as total").
		Where("data = ? AND hora = ? AND status <> ?", slot.Date(), slot.Time(), reservas.ReservationStatusCanceled.String())
	if exclude != 0 {
		query = query.Where("id <> ?", exclude.Uint64())
	}
	if err := query.Scan(&sum).Error; err != nil {
		return 0, wrapStoreError(errorSubjectOccupancy, errorCodeSum, err)
	}
	return int(sum.Total), nil
}

func (store *Store) CountReservationsByOwner(ctx context.Context, ownerID reservas.UserID) (int, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("user_id = ?", ownerID.String()).
		Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectReservation, errorCodeCount, err)
	}
	return int(count), nil
}

func (store *Store) CreateReservation(ctx context.Context, reservation reservas.Reservation) (reservas.Reservation, error) {
	row := toReservationRow(reservation)
	row.ID = 0
	err := store.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return reservas.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeDuplicate, err)
	}
	if err != nil {
		return reservas.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeCreate, err)
	}
	created, err := mapReservation(row)
	if err != nil {
		return reservas.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
	}
	return created, nil
}

func (store *Store) GetReservation(ctx context.Context, id reservas.ReservationID) (reservas.Reservation, error) {
	var row Reservation
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id.Uint64()).
		Take(&row).Error
	return store.mapLookup(row, err)
}

func (store *Store) FindReservationByToken(ctx context.Context, token string) (reservas.Reservation, error) {
	var row Reservation
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("confirmacao_token = ?", token).
		Take(&row).Error
	return store.mapLookup(row, err)
}

func (store *Store) mapLookup(row Reservation, err error) (reservas.Reservation, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reservas.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, reservas.ErrReservationNotFound)
		}
		return reservas.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, err)
	}
	reservation, err := mapReservation(row)
	if err != nil {
		return reservas.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
	}
	return reservation, nil
}

func (store *Store) UpdateReservation(ctx context.Context, reservation reservas.Reservation) error {
	row := toReservationRow(reservation)
	err := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("id = ?", row.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(&row).Error
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdate, err)
	}
	return nil
}

func (store *Store) DeleteReservation(ctx context.Context, id reservas.ReservationID) error {
	result := store.db.WithContext(ctx).Where("id = ?", id.Uint64()).Delete(&Reservation{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectReservation, errorCodeDelete, reservas.ErrReservationNotFound)
	}
	return nil
}

func (store *Store) ListReservations(ctx context.Context, query reservas.ReservationQuery) (reservas.ReservationPage, error) {
	base := store.db.WithContext(ctx).Model(&Reservation{})
	if query.OwnerID != nil {
		base = base.Where("user_id = ?", query.OwnerID.String())
	}
	if query.FromDate != "" {
		base = base.Where("data >= ?", query.FromDate)
	}
	if query.ToDate != "" {
		base = base.Where("data <= ?", query.ToDate)
	}
	base = store.applySearchFilter(base, query.Filter)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return reservas.ReservationPage{}, wrapStoreError(errorSubjectReservation, errorCodeCount, err)
	}

	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = reservas.ReportPageSize
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	ordered := base.Session(&gorm.Session{})
	switch query.Order {
	case reservas.OrderByDate:
		ordered = ordered.Order("data ASC").Order("hora ASC").Order("id ASC")
	default:
		ordered = ordered.Order("id DESC")
	}
	var rows []Reservation
	if err := ordered.Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return reservas.ReservationPage{}, wrapStoreError(errorSubjectReservation, errorCodeList, err)
	}
	items := make([]reservas.Reservation, 0, len(rows))
	for _, row := range rows {
		reservation, err := mapReservation(row)
		if err != nil {
			return reservas.ReservationPage{}, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
		}
		items = append(items, reservation)
	}
	return reservas.ReservationPage{Items: items, Total: int(total), Page: page, PageSize: pageSize}, nil
}

// applySearchFilter matches text columns by case-insensitive substring and
// numeric columns exactly.
func (store *Store) applySearchFilter(query *gorm.DB, filter reservas.SearchFilter) *gorm.DB {
	if filter.IsEmpty() {
		return query
	}
	term := strings.TrimSpace(filter.Term)
	like := "%" + strings.ToLower(term) + "%"
	number, numberErr := strconv.ParseUint(term, 10, 64)
	isNumber := numberErr == nil
	switch filter.Field {
	case reservas.SearchFieldID:
		if !isNumber {
			return query.Where("1 = 0")
		}
		return query.Where("id = ?", number)
	case reservas.SearchFieldName:
		return query.Where("LOWER(name) LIKE ?", like)
	case reservas.SearchFieldDate:
		return query.Where("data LIKE ?", like)
	case reservas.SearchFieldTime:
		return query.Where("hora LIKE ?", like)
	case reservas.SearchFieldPartySize:
		if !isNumber {
			return query.Where("1 = 0")
		}
		return query.Where("quantidade_cadeiras = ?", number)
	}
	group := store.db.Session(&gorm.Session{NewDB: true}).
		Where("LOWER(name) LIKE ?", like).
		Or("data LIKE ?", like).
		Or("hora LIKE ?", like)
	if isNumber {
		group = group.Or("id = ?", number).Or("quantidade_cadeiras = ?", number)
	}
	return query.Where(group)
}

func (store *Store) ListReservationDays(ctx context.Context, fromDate string, toDate string) ([]reservas.ReservationDay, error) {
	var rows []dayRow
	err := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Select("data, status").
		Where("data >= ? AND data <= ?", fromDate, toDate).
		Order("data ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectReservation, errorCodeList, err)
	}
	days := make([]reservas.ReservationDay, 0, len(rows))
	for _, row := range rows {
		slot, err := reservas.NewSlot(row.Data, "00:00")
		if err != nil {
			return nil, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
		}
		status, err := reservas.ParseReservationStatus(row.Status)
		if err != nil {
			return nil, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
		}
		days = append(days, reservas.ReservationDay{Date: slot.Day(), Status: status})
	}
	return days, nil
}

func (store *Store) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]reservas.Reservation, error) {
	var rows []Reservation
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ? AND created_at < ?", reservas.ReservationStatusPending.String(), cutoff.UTC()).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectReservation, errorCodeList, err)
	}
	reservations := make([]reservas.Reservation, 0, len(rows))
	for _, row := range rows {
		reservation, err := mapReservation(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
		}
		reservations = append(reservations, reservation)
	}
	return reservations, nil
}

func (store *Store) EnqueueNotification(ctx context.Context, notification reservas.Notification) error {
	payload, err := json.Marshal(notification.Payload)
	if err != nil {
		return wrapStoreError(errorSubjectOutbox, errorCodeEncode, err)
	}
	now := time.Now().UTC()
	row := OutboxMessage{
		Kind:        string(notification.Kind),
		Recipient:   notification.Recipient,
		Subject:     notification.Subject,
		Payload:     payload,
		Status:      outboxStatusPending,
		AvailableAt: now,
		CreatedAt:   now,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectOutbox, errorCodeCreate, err)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return reservas.WrapError(errorOperationStore, subject, code, err)
}

type sqlSum struct {
	Total int64
}

type dayRow struct {
	Data   string
	Status string
}

func toReservationRow(reservation reservas.Reservation) Reservation {
	var ownerID *string
	if reservation.OwnerID != nil {
		value := reservation.OwnerID.String()
		ownerID = &value
	}
	var canceledAt *time.Time
	if reservation.CanceledAt != nil {
		value := reservation.CanceledAt.UTC()
		canceledAt = &value
	}
	createdAt := reservation.CreatedAt.UTC()
	if reservation.CreatedAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := reservation.UpdatedAt.UTC()
	if reservation.UpdatedAt.IsZero() {
		updatedAt = createdAt
	}
	return Reservation{
		ID:                 reservation.ID.Uint64(),
		UserID:             ownerID,
		Date:               reservation.Slot.Date(),
		Time:               reservation.Slot.Time(),
		PartySize:          reservation.PartySize.Int(),
		Name:               reservation.Contact.Name(),
		Email:              reservation.Contact.Email(),
		Phone:              reservation.Contact.Phone(),
		Status:             reservation.Status.String(),
		ConfirmationToken:  optionalString(reservation.ConfirmationToken),
		CancellationReason: optionalString(reservation.CancellationReason),
		CanceledAt:         canceledAt,
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
	}
}

func mapReservation(row Reservation) (reservas.Reservation, error) {
	id, err := reservas.NewReservationID(row.ID)
	if err != nil {
		return reservas.Reservation{}, err
	}
	var ownerID *reservas.UserID
	if row.UserID != nil {
		parsedOwnerID, err := reservas.NewUserID(*row.UserID)
		if err != nil {
			return reservas.Reservation{}, err
		}
		ownerID = &parsedOwnerID
	}
	slot, err := reservas.NewSlot(row.Date, row.Time)
	if err != nil {
		return reservas.Reservation{}, err
	}
	partySize, err := reservas.NewPartySize(row.PartySize)
	if err != nil {
		return reservas.Reservation{}, err
	}
	contact, err := reservas.NewContact(row.Name, row.Email, row.Phone)
	if err != nil {
		return reservas.Reservation{}, err
	}
	status, err := reservas.ParseReservationStatus(row.Status)
	if err != nil {
		return reservas.Reservation{}, err
	}
	return reservas.Reservation{
		ID:                 id,
		OwnerID:            ownerID,
		Slot:               slot,
		PartySize:          partySize,
		Contact:            contact,
		Status:             status,
		ConfirmationToken:  valueOrEmpty(row.ConfirmationToken),
		CancellationReason: valueOrEmpty(row.CancellationReason),
		CanceledAt:         row.CanceledAt,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}, nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func valueOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntryCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
