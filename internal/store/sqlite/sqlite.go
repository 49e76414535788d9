package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/agriai/agriai-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema against an in-memory database.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

// ==== OrderStore implementation ====

const orderColumns = `id, order_number, user_id, items, shipping_address, payment_method,
	shipping_price, total_price, status, delivered_at, created_at, updated_at`

// CreateOrder persists a new order.
func (s *SQLiteStore) CreateOrder(ctx context.Context, order *store.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = store.OrderStatusPending
	}
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	shipping, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	query := `
		INSERT INTO orders (id, order_number, user_id, items, shipping_address, payment_method,
			shipping_price, total_price, status, delivered_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		order.ID,
		order.OrderNumber,
		order.UserID,
		string(items),
		string(shipping),
		order.PaymentMethod,
		order.ShippingPrice,
		order.TotalPrice,
		string(order.Status),
		order.DeliveredAt,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetOrder retrieves an order by ID.
func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*store.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`
	order, err := scanOrder(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query order: %w", err)
	}
	return order, nil
}

// UpdateOrderStatus sets the order status and returns the updated order.
func (s *SQLiteStore) UpdateOrderStatus(ctx context.Context, id string, status store.OrderStatus, deliveredAt *time.Time) (*store.Order, error) {
	query := `
		UPDATE orders
		SET status = ?, delivered_at = COALESCE(?, delivered_at), updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, string(status), deliveredAt, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	return s.GetOrder(ctx, id)
}

// ListOrdersByUser lists a user's orders, newest first.
func (s *SQLiteStore) ListOrdersByUser(ctx context.Context, userID string) ([]*store.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*store.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func scanOrder(row scanner) (*store.Order, error) {
	var order store.Order
	var items, shipping, status string
	var deliveredAt sql.NullTime

	if err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&items,
		&shipping,
		&order.PaymentMethod,
		&order.ShippingPrice,
		&order.TotalPrice,
		&status,
		&deliveredAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(items), &order.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if err := json.Unmarshal([]byte(shipping), &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address: %w", err)
	}
	order.Status = store.OrderStatus(status)
	if deliveredAt.Valid {
		order.DeliveredAt = &deliveredAt.Time
	}
	return &order, nil
}

// ==== AppointmentStore implementation ====

const appointmentColumns = `id, farmer_name, farmer_user_id, expert_user_id, crops, issue, location,
	languages, preferred_time, status, call_status, room_name, created_at, updated_at`

// CreateAppointment persists a new appointment.
func (s *SQLiteStore) CreateAppointment(ctx context.Context, appt *store.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status == "" {
		appt.Status = store.AppointmentStatusPending
	}
	if appt.CallStatus == "" {
		appt.CallStatus = store.CallStatusNotRequested
	}
	if len(appt.Languages) == 0 {
		appt.Languages = []string{"English"}
	}
	now := time.Now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now

	crops, err := json.Marshal(appt.Crops)
	if err != nil {
		return fmt.Errorf("marshal crops: %w", err)
	}
	languages, err := json.Marshal(appt.Languages)
	if err != nil {
		return fmt.Errorf("marshal languages: %w", err)
	}

	query := `
		INSERT INTO appointments (id, farmer_name, farmer_user_id, expert_user_id, crops, issue, location,
			languages, preferred_time, status, call_status, room_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		appt.ID,
		appt.FarmerName,
		appt.FarmerUserID,
		appt.ExpertUserID,
		string(crops),
		appt.Issue,
		appt.Location,
		string(languages),
		appt.PreferredTime,
		string(appt.Status),
		string(appt.CallStatus),
		appt.SessionToken,
		appt.CreatedAt,
		appt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// GetAppointment retrieves an appointment by ID.
func (s *SQLiteStore) GetAppointment(ctx context.Context, id string) (*store.Appointment, error) {
	return getAppointment(ctx, s.db, id)
}

// ListAppointmentsForExpert lists an expert's appointments, newest first.
func (s *SQLiteStore) ListAppointmentsForExpert(ctx context.Context, expertUserID string) ([]*store.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE expert_user_id = ? ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, expertUserID)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	appts := make([]*store.Appointment, 0)
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

// UpdatePreferredTime sets the preferred time and returns the updated appointment.
func (s *SQLiteStore) UpdatePreferredTime(ctx context.Context, id, preferredTime string) (*store.Appointment, error) {
	query := `UPDATE appointments SET preferred_time = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, preferredTime, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("update preferred time: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("appointment %s: %w", id, store.ErrNotFound)
	}
	return s.GetAppointment(ctx, id)
}

// UpdateCallStatus sets call_status, and room_name when sessionToken is non-nil,
// and reads the row back inside one transaction.
func (s *SQLiteStore) UpdateCallStatus(ctx context.Context, id string, status store.CallStatus, sessionToken *string) (*store.Appointment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	query := `
		UPDATE appointments
		SET call_status = ?, room_name = COALESCE(?, room_name), updated_at = ?
		WHERE id = ?
	`
	result, err := tx.ExecContext(ctx, query, string(status), sessionToken, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("update call status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("appointment %s: %w", id, store.ErrNotFound)
	}

	appt, err := getAppointment(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return appt, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getAppointment(ctx context.Context, q queryRower, id string) (*store.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = ?`
	appt, err := scanAppointment(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("appointment %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query appointment: %w", err)
	}
	return appt, nil
}

func scanAppointment(row scanner) (*store.Appointment, error) {
	var appt store.Appointment
	var crops, languages, status, callStatus string
	var farmerUserID, preferredTime, roomName sql.NullString

	if err := row.Scan(
		&appt.ID,
		&appt.FarmerName,
		&farmerUserID,
		&appt.ExpertUserID,
		&crops,
		&appt.Issue,
		&appt.Location,
		&languages,
		&preferredTime,
		&status,
		&callStatus,
		&roomName,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(crops), &appt.Crops); err != nil {
		return nil, fmt.Errorf("decode crops: %w", err)
	}
	if err := json.Unmarshal([]byte(languages), &appt.Languages); err != nil {
		return nil, fmt.Errorf("decode languages: %w", err)
	}
	appt.Status = store.AppointmentStatus(status)
	appt.CallStatus = store.CallStatus(callStatus)
	if farmerUserID.Valid {
		appt.FarmerUserID = &farmerUserID.String
	}
	if preferredTime.Valid {
		appt.PreferredTime = &preferredTime.String
	}
	if roomName.Valid {
		appt.SessionToken = &roomName.String
	}
	return &appt, nil
}

var _ store.Store = (*SQLiteStore)(nil)
