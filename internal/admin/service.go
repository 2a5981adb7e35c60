package admin

import (
	"errors"
	"fmt"
	"time"

	"ms-ordering/internal/audit"
	"ms-ordering/internal/logger"
	"ms-ordering/internal/models"
	"ms-ordering/internal/order"
	"ms-ordering/internal/order/db"
)

// OrderStore is the slice of the ledger the admin path needs. Overrides write
// unconditionally; every normal transition stays behind its conditional
// update in the order service.
type OrderStore interface {
	GetOrderByID(id string) (*models.Order, error)
	OverrideOrder(order models.Order) error
}

// AuditLog records every override with its before/after snapshots.
type AuditLog interface {
	Record(adminID, orderID string, before, after models.Order, reason string) error
	ListByOrder(orderID string, limit, offset int) ([]audit.Entry, error)
}

type Service struct {
	Orders OrderStore
	Audit  AuditLog
	Logger *logger.Logger
}

func NewService(orders OrderStore, auditLog AuditLog, log *logger.Logger) *Service {
	return &Service{Orders: orders, Audit: auditLog, Logger: log}
}

// Override force-sets order fields for support interventions. It can move
// status backwards and repair payment state, which no other path can. A
// reason is mandatory and the change is written to the audit trail.
func (s *Service) Override(adminID, orderID string, req models.OverrideRequest) (*models.Order, error) {
	if req.Reason == "" {
		return nil, fmt.Errorf("%w: a reason is required for an override", order.ErrValidation)
	}
	if req.Status == nil && req.PaymentStatus == nil && req.CanteenID == nil {
		return nil, fmt.Errorf("%w: override must change at least one field", order.ErrValidation)
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, fmt.Errorf("%w: %q is not a valid status", order.ErrValidation, *req.Status)
	}
	if req.PaymentStatus != nil && !req.PaymentStatus.Valid() {
		return nil, fmt.Errorf("%w: %q is not a valid payment status", order.ErrValidation, *req.PaymentStatus)
	}
	if req.CanteenID != nil && *req.CanteenID == "" {
		return nil, fmt.Errorf("%w: canteen_id cannot be blank", order.ErrValidation)
	}

	current, err := s.Orders.GetOrderByID(orderID)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			return nil, fmt.Errorf("%w: order %s", order.ErrNotFound, orderID)
		}
		return nil, err
	}

	before := *current
	updated := *current
	if req.Status != nil {
		updated.Status = *req.Status
	}
	if req.PaymentStatus != nil {
		updated.PaymentStatus = *req.PaymentStatus
	}
	if req.CanteenID != nil {
		updated.CanteenID = *req.CanteenID
	}
	updated.UpdatedAt = time.Now()

	if err := s.Orders.OverrideOrder(updated); err != nil {
		return nil, err
	}

	s.Logger.LogOrder("OVERRIDE", orderID, fmt.Sprintf("Admin %s overrode order: %s", adminID, req.Reason))

	// The override is already applied; a failed audit write is surfaced so
	// the admin knows the trail is incomplete and can retry or escalate.
	if err := s.Audit.Record(adminID, orderID, before, updated, req.Reason); err != nil {
		s.Logger.Error("AUDIT", fmt.Sprintf("Override of %s applied but audit write failed: %v", orderID, err))
		return &updated, fmt.Errorf("override applied but audit record failed: %w", err)
	}

	return &updated, nil
}

// AuditTrail returns the override history for one order.
func (s *Service) AuditTrail(orderID string, limit, offset int) ([]audit.Entry, error) {
	return s.Audit.ListByOrder(orderID, limit, offset)
}
