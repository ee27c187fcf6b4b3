package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rentflow/payment-gateway/internal/constant/model/db"
	"github.com/rentflow/payment-gateway/internal/core"
	"github.com/rentflow/payment-gateway/internal/port/output"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormPaymentRepository is a secondary adapter that implements the
// PaymentRepository and LedgerRepository output ports.
type GormPaymentRepository struct {
	gormDB *gorm.DB
}

// NewGormPaymentRepository creates a new GORM payment repository
func NewGormPaymentRepository(gormDB *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{gormDB: gormDB}
}

// paymentToCore converts db.Payment to core.Payment
func paymentToCore(p *db.Payment) *core.Payment {
	ref := ""
	if p.ReferenceNumber != nil {
		ref = *p.ReferenceNumber
	}
	return &core.Payment{
		ID:              p.ID,
		InvoiceID:       p.InvoiceID,
		LeaseID:         p.LeaseID,
		AgencyID:        p.AgencyID,
		Amount:          p.Amount,
		Method:          p.Method,
		ReferenceNumber: ref,
		PaidAt:          p.PaidAt,
		Notes:           p.Notes,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// paymentFromData converts core.PaymentData to a db.Payment row
func paymentFromData(d core.PaymentData) *db.Payment {
	p := &db.Payment{
		InvoiceID: d.InvoiceID,
		LeaseID:   d.LeaseID,
		AgencyID:  d.AgencyID,
		Amount:    d.Amount,
		Method:    d.Method,
		PaidAt:    d.PaidAt,
		Notes:     d.Notes,
	}
	if d.ReferenceNumber != "" {
		ref := d.ReferenceNumber
		p.ReferenceNumber = &ref
	}
	return p
}

// invoiceToCore converts db.Invoice to core.Invoice
func invoiceToCore(i *db.Invoice) *core.Invoice {
	return &core.Invoice{
		ID:        i.ID,
		AgencyID:  i.AgencyID,
		LeaseID:   i.LeaseID,
		Amount:    i.Amount,
		TotalPaid: i.TotalPaid,
		LateFee:   i.LateFee,
		Status:    core.InvoiceStatus(i.Status),
		Version:   i.Version,
		DueDate:   i.DueDate,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

// transactionToCore converts db.ExternalTransaction to core.ExternalTransaction
func transactionToCore(t *db.ExternalTransaction) *core.ExternalTransaction {
	var meta map[string]interface{}
	if len(t.Metadata) > 0 {
		_ = json.Unmarshal(t.Metadata, &meta)
	}
	return &core.ExternalTransaction{
		ID:                t.ID,
		ExternalRef:       t.ExternalRef,
		AgencyID:          t.AgencyID,
		LeaseID:           t.LeaseID,
		InvoiceID:         t.InvoiceID,
		Amount:            t.Amount,
		Status:            core.TransactionStatus(t.Status),
		ResultCode:        t.ResultCode,
		ResultDescription: t.ResultDescription,
		Metadata:          meta,
		CompletedAt:       t.CompletedAt,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func metadataJSON(meta map[string]interface{}) datatypes.JSON {
	if meta == nil {
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// isUniqueViolation matches the unique-index error shapes of postgres and
// sqlite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "23505")
}

// CreateInvoice creates a new invoice
func (r *GormPaymentRepository) CreateInvoice(ctx context.Context, invoice *core.Invoice) error {
	row := &db.Invoice{
		ID:        invoice.ID,
		AgencyID:  invoice.AgencyID,
		LeaseID:   invoice.LeaseID,
		Amount:    invoice.Amount,
		TotalPaid: invoice.TotalPaid,
		LateFee:   invoice.LateFee,
		Status:    db.InvoiceStatus(invoice.Status),
		Version:   invoice.Version,
		DueDate:   invoice.DueDate,
	}
	if err := r.gormDB.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	invoice.ID = row.ID
	invoice.CreatedAt = row.CreatedAt
	invoice.UpdatedAt = row.UpdatedAt
	return nil
}

// GetInvoice retrieves an invoice by its ID
func (r *GormPaymentRepository) GetInvoice(ctx context.Context, id uuid.UUID) (*core.Invoice, error) {
	var row db.Invoice
	if err := r.gormDB.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.NewError(core.KindValidation, "invoice not found")
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoiceToCore(&row), nil
}

// GetPayment retrieves a payment by its ID
func (r *GormPaymentRepository) GetPayment(ctx context.Context, id uuid.UUID) (*core.Payment, error) {
	var row db.Payment
	if err := r.gormDB.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.NewError(core.KindValidation, "payment not found")
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return paymentToCore(&row), nil
}

// RecordPayment atomically inserts a payment and applies the invoice CAS
// update in one transaction.
func (r *GormPaymentRepository) RecordPayment(ctx context.Context, data core.PaymentData) (*core.Payment, error) {
	var created *db.Payment
	err := r.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := r.recordPaymentTx(tx, data)
		if err != nil {
			return err
		}
		created = row
		return nil
	})
	if err != nil {
		return nil, classifyTxError(err)
	}
	return paymentToCore(created), nil
}

// recordPaymentTx is the single writer path for payments: duplicate-reference
// check, payment insert, then a conditional invoice update that succeeds only
// if the version read is still current. It runs inside the caller's
// transaction so the callback processor can compose it with the transaction
// flip and ledger write.
func (r *GormPaymentRepository) recordPaymentTx(tx *gorm.DB, data core.PaymentData) (*db.Payment, error) {
	if data.ReferenceNumber != "" {
		var count int64
		if err := tx.Model(&db.Payment{}).
			Where("agency_id = ? AND reference_number = ?", data.AgencyID, data.ReferenceNumber).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check reference: %w", err)
		}
		if count > 0 {
			return nil, core.NewError(core.KindDuplicatePayment,
				fmt.Sprintf("payment with reference %s already exists", data.ReferenceNumber))
		}
	}

	row := paymentFromData(data)
	if err := tx.Create(row).Error; err != nil {
		// Two writers can pass the count check together; the unique index
		// settles it.
		if isUniqueViolation(err) {
			return nil, core.WrapError(core.KindDuplicatePayment,
				fmt.Sprintf("payment with reference %s already exists", data.ReferenceNumber), err)
		}
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	if data.InvoiceID != nil {
		var inv db.Invoice
		if err := tx.Where("id = ?", *data.InvoiceID).First(&inv).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, core.NewError(core.KindValidation, "invoice not found")
			}
			return nil, fmt.Errorf("failed to read invoice: %w", err)
		}
		if inv.AgencyID != data.AgencyID {
			return nil, core.NewError(core.KindValidation, "invoice belongs to another agency")
		}

		newTotal := inv.TotalPaid + data.Amount
		newStatus := core.DeriveStatus(inv.Amount, newTotal)
		res := tx.Model(&db.Invoice{}).
			Where("id = ? AND version = ?", inv.ID, inv.Version).
			Updates(map[string]interface{}{
				"total_paid": newTotal,
				"status":     db.InvoiceStatus(newStatus),
				"version":    inv.Version + 1,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return nil, fmt.Errorf("failed to update invoice: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, core.NewError(core.KindRetryableConflict,
				"invoice changed since read, retry with fresh state")
		}
	}

	return row, nil
}

// CreateTransaction records a new external payment attempt in PENDING
func (r *GormPaymentRepository) CreateTransaction(ctx context.Context, txn *core.ExternalTransaction) error {
	row := &db.ExternalTransaction{
		ID:          txn.ID,
		ExternalRef: txn.ExternalRef,
		AgencyID:    txn.AgencyID,
		LeaseID:     txn.LeaseID,
		InvoiceID:   txn.InvoiceID,
		Amount:      txn.Amount,
		Status:      db.TransactionStatusPending,
		Metadata:    metadataJSON(txn.Metadata),
	}
	if err := r.gormDB.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return core.WrapError(core.KindDuplicatePayment,
				fmt.Sprintf("transaction with reference %s already exists", txn.ExternalRef), err)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	txn.ID = row.ID
	txn.Status = core.TransactionStatusPending
	txn.CreatedAt = row.CreatedAt
	txn.UpdatedAt = row.UpdatedAt
	return nil
}

// GetTransactionByRef retrieves an external transaction by provider reference
func (r *GormPaymentRepository) GetTransactionByRef(ctx context.Context, externalRef string) (*core.ExternalTransaction, error) {
	var row db.ExternalTransaction
	if err := r.gormDB.WithContext(ctx).Where("external_ref = ?", externalRef).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.NewError(core.KindValidation,
				fmt.Sprintf("no transaction for reference %s", externalRef))
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return transactionToCore(&row), nil
}

// ClaimTransaction conditionally flips the transaction into PROCESSING. The
// conditional update is the claim itself: exactly one of any number of
// concurrent callers sees RowsAffected == 1.
func (r *GormPaymentRepository) ClaimTransaction(ctx context.Context, id uuid.UUID, allowReclaim bool) (bool, error) {
	statuses := []db.TransactionStatus{db.TransactionStatusPending}
	if allowReclaim {
		statuses = append(statuses, db.TransactionStatusProcessing)
	}
	res := r.gormDB.WithContext(ctx).Model(&db.ExternalTransaction{}).
		Where("id = ? AND status IN ?", id, statuses).
		Updates(map[string]interface{}{
			"status":     db.TransactionStatusProcessing,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim transaction: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ApplyCallbackSuccess writes the payment, finalizes the transaction and
// appends the ledger entry in one transaction.
func (r *GormPaymentRepository) ApplyCallbackSuccess(ctx context.Context, apply output.ApplySuccess) (*core.Payment, error) {
	var created *db.Payment
	err := r.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := r.recordPaymentTx(tx, apply.Payment)
		if err != nil {
			return err
		}
		created = row

		now := time.Now()
		res := tx.Model(&db.ExternalTransaction{}).
			Where("id = ? AND status = ?", apply.TransactionID, db.TransactionStatusProcessing).
			Updates(map[string]interface{}{
				"status":             db.TransactionStatusSuccess,
				"result_code":        apply.ResultCode,
				"result_description": apply.ResultDescription,
				"metadata":           metadataJSON(apply.Metadata),
				"completed_at":       now,
				"updated_at":         now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to finalize transaction: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return core.NewError(core.KindDuplicatePayment, "transaction already finalized")
		}

		record := &db.CallbackRecord{
			CallbackID:      apply.CallbackID,
			ExternalRef:     apply.ExternalRef,
			OutcomeType:     string(db.TransactionStatusSuccess),
			Processed:       true,
			LinkedPaymentID: &row.ID,
			Metadata:        metadataJSON(apply.Metadata),
		}
		if err := tx.Create(record).Error; err != nil {
			if isUniqueViolation(err) {
				return core.WrapError(core.KindDuplicatePayment, "callback already recorded", err)
			}
			return fmt.Errorf("failed to record callback: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, classifyTxError(err)
	}
	return paymentToCore(created), nil
}

// ApplyCallbackFailure finalizes the transaction as FAILED and appends the
// ledger entry in one transaction.
func (r *GormPaymentRepository) ApplyCallbackFailure(ctx context.Context, apply output.ApplyFailure) error {
	err := r.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&db.ExternalTransaction{}).
			Where("id = ? AND status = ?", apply.TransactionID, db.TransactionStatusProcessing).
			Updates(map[string]interface{}{
				"status":             db.TransactionStatusFailed,
				"result_code":        apply.ResultCode,
				"result_description": apply.ResultDescription,
				"metadata":           metadataJSON(apply.Metadata),
				"completed_at":       now,
				"updated_at":         now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to finalize transaction: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return core.NewError(core.KindDuplicatePayment, "transaction already finalized")
		}

		record := &db.CallbackRecord{
			CallbackID:  apply.CallbackID,
			ExternalRef: apply.ExternalRef,
			OutcomeType: string(db.TransactionStatusFailed),
			Processed:   true,
			Metadata:    metadataJSON(apply.Metadata),
		}
		if err := tx.Create(record).Error; err != nil {
			if isUniqueViolation(err) {
				return core.WrapError(core.KindDuplicatePayment, "callback already recorded", err)
			}
			return fmt.Errorf("failed to record callback: %w", err)
		}
		return nil
	})
	if err != nil {
		return classifyTxError(err)
	}
	return nil
}

// IsCallbackProcessed reports whether a ledger entry exists for the pair
func (r *GormPaymentRepository) IsCallbackProcessed(ctx context.Context, externalRef, callbackID string) (bool, error) {
	var count int64
	if err := r.gormDB.WithContext(ctx).Model(&db.CallbackRecord{}).
		Where("external_ref = ? AND callback_id = ?", externalRef, callbackID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check callback record: %w", err)
	}
	return count > 0, nil
}

// MarkOverdue flips past-due unpaid invoices to OVERDUE through the same CAS
// discipline the recorder uses. A row whose version moved under us is simply
// skipped; the next sweep picks it up.
func (r *GormPaymentRepository) MarkOverdue(ctx context.Context, now time.Time, rateBps, minFee, maxFee int64) (int64, error) {
	var rows []db.Invoice
	if err := r.gormDB.WithContext(ctx).
		Where("status IN ? AND due_date IS NOT NULL AND due_date < ?",
			[]db.InvoiceStatus{db.InvoiceStatusPending, db.InvoiceStatusPartial}, now).
		Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("failed to list overdue candidates: %w", err)
	}

	var marked int64
	for _, inv := range rows {
		fee := core.LateFee(inv.Amount, rateBps, minFee, maxFee)
		res := r.gormDB.WithContext(ctx).Model(&db.Invoice{}).
			Where("id = ? AND version = ?", inv.ID, inv.Version).
			Updates(map[string]interface{}{
				"status":     db.InvoiceStatusOverdue,
				"late_fee":   fee,
				"version":    inv.Version + 1,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return marked, fmt.Errorf("failed to mark invoice %s overdue: %w", inv.ID, res.Error)
		}
		marked += res.RowsAffected
	}
	return marked, nil
}

// LeaseActivity summarizes payments and attempts for one lease
func (r *GormPaymentRepository) LeaseActivity(ctx context.Context, leaseID uuid.UUID) (*output.LeaseActivity, error) {
	var activity output.LeaseActivity
	if err := r.gormDB.WithContext(ctx).Model(&db.Payment{}).
		Where("lease_id = ?", leaseID).
		Count(&activity.Payments).Error; err != nil {
		return nil, fmt.Errorf("failed to count payments: %w", err)
	}
	if err := r.gormDB.WithContext(ctx).Model(&db.ExternalTransaction{}).
		Where("lease_id = ?", leaseID).
		Count(&activity.Transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}
	var total struct{ Total int64 }
	if err := r.gormDB.WithContext(ctx).Model(&db.Payment{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("lease_id = ?", leaseID).
		Scan(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to sum payments: %w", err)
	}
	activity.TotalPaid = total.Total
	return &activity, nil
}

// classifyTxError keeps domain classifications and maps context deadline
// expiry onto the transient kind so a timed-out transaction is retryable.
func classifyTxError(err error) error {
	if core.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return core.WrapError(core.KindTransient, "transaction timed out", err)
	}
	return err
}
