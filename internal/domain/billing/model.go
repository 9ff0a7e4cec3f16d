package billing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Fallback consultation charge when the catalog has no "Doctor Fee"
// entry. Both numbers are in the clinic's base currency.
const (
	DefaultDoctorFeePrice = 300.0
	DefaultDoctorFee      = 300.0
	doctorFeeDescription  = "Doctor Fee"
)

// ErrInsufficientPayment is returned when cash received does not cover
// the grand total.
var ErrInsufficientPayment = errors.New("cash received is less than the amount due")

// ClinicService maps to the clinic_service table: chargeable catalog
// items such as consultations and procedures. DoctorFee is the portion
// of the price owed to the treating doctor, when any.
type ClinicService struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Price     float64   `db:"price" json:"price"`
	DoctorFee *float64  `db:"doctor_fee" json:"doctor_fee,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BillItem is one line of a draft bill.
type BillItem struct {
	Description string  `json:"description"`
	Amount      int     `json:"amount"`
	Price       float64 `json:"price"`
	DoctorFee   float64 `json:"doctor_fee,omitempty"`
	Total       float64 `json:"total"`
}

// Bill is a draft invoice assembled at the cashier desk. It is a pure
// value: nothing here touches storage, so the cashier can add, edit and
// remove lines freely before committing payment as a Transaction.
type Bill struct {
	Items    []BillItem `json:"items"`
	Discount float64    `json:"discount"`
}

// NewBill returns an empty draft bill.
func NewBill() *Bill {
	return &Bill{Items: []BillItem{}}
}

// AddDoctorFeeLine prepends the consultation charge. When the catalog
// carries a "Doctor Fee" entry its price and fee are used; otherwise the
// clinic default applies.
func (b *Bill) AddDoctorFeeLine(svc *ClinicService) {
	price := DefaultDoctorFeePrice
	fee := DefaultDoctorFee
	if svc != nil {
		price = svc.Price
		if svc.DoctorFee != nil {
			fee = *svc.DoctorFee
		}
	}
	item := BillItem{
		Description: doctorFeeDescription,
		Amount:      1,
		Price:       price,
		DoctorFee:   fee,
		Total:       price,
	}
	b.Items = append([]BillItem{item}, b.Items...)
}

// AddItem appends a line to the bill.
func (b *Bill) AddItem(description string, amount int, price, doctorFee float64) error {
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("description is required")
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if price < 0 {
		return fmt.Errorf("price cannot be negative")
	}
	b.Items = append(b.Items, BillItem{
		Description: description,
		Amount:      amount,
		Price:       price,
		DoctorFee:   doctorFee,
		Total:       float64(amount) * price,
	})
	return nil
}

// UpdateItem changes the amount and unit price of an existing line.
func (b *Bill) UpdateItem(index, amount int, price float64) error {
	if index < 0 || index >= len(b.Items) {
		return fmt.Errorf("no bill item at index %d", index)
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if price < 0 {
		return fmt.Errorf("price cannot be negative")
	}
	b.Items[index].Amount = amount
	b.Items[index].Price = price
	b.Items[index].Total = float64(amount) * price
	return nil
}

// RemoveItem deletes a line.
func (b *Bill) RemoveItem(index int) error {
	if index < 0 || index >= len(b.Items) {
		return fmt.Errorf("no bill item at index %d", index)
	}
	b.Items = append(b.Items[:index], b.Items[index+1:]...)
	return nil
}

// SetDiscount applies a flat discount to the bill.
func (b *Bill) SetDiscount(d float64) error {
	if d < 0 {
		return fmt.Errorf("discount cannot be negative")
	}
	b.Discount = d
	return nil
}

// Subtotal is the sum of all line totals.
func (b *Bill) Subtotal() float64 {
	var sum float64
	for _, item := range b.Items {
		sum += item.Total
	}
	return sum
}

// GrandTotal is the subtotal less the discount, never below zero.
func (b *Bill) GrandTotal() float64 {
	total := b.Subtotal() - b.Discount
	if total < 0 {
		return 0
	}
	return total
}

// Change is what the cashier hands back for a cash payment; it is never
// negative.
func (b *Bill) Change(cashReceived float64) float64 {
	change := cashReceived - b.GrandTotal()
	if change < 0 {
		return 0
	}
	return change
}

// TotalDoctorFee is the doctor's cut across all lines that carry a fee.
func (b *Bill) TotalDoctorFee() float64 {
	var sum float64
	for _, item := range b.Items {
		if item.DoctorFee > 0 {
			sum += item.DoctorFee * float64(item.Amount)
		}
	}
	return sum
}

// Payment methods.
const (
	PaymentCash       = "Cash"
	PaymentTransfer   = "Transfer"
	PaymentCreditCard = "CreditCard"
)

// Transaction statuses.
const (
	StatusPaid = "Paid"
	StatusVoid = "Void"
)

// Transaction is a committed payment. Once written it is immutable apart
// from being voided; corrections are made with a new transaction.
type Transaction struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	AppointmentID uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	PatientName   string     `db:"patient_name" json:"patient_name"`
	DoctorID      *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	DoctorName    *string    `db:"doctor_name" json:"doctor_name,omitempty"`
	Items         []BillItem `db:"items" json:"items"`
	Subtotal      float64    `db:"subtotal" json:"subtotal"`
	Discount      float64    `db:"discount" json:"discount"`
	GrandTotal    float64    `db:"grand_total" json:"grand_total"`
	PaymentMethod string     `db:"payment_method" json:"payment_method"`
	Status        string     `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// DoctorFeeEntry records the doctor's cut of one paid transaction, the
// raw material for the periodic fee report.
type DoctorFeeEntry struct {
	ID            uuid.UUID `db:"id" json:"id"`
	TransactionID uuid.UUID `db:"transaction_id" json:"transaction_id"`
	DoctorID      uuid.UUID `db:"doctor_id" json:"doctor_id"`
	DoctorName    string    `db:"doctor_name" json:"doctor_name"`
	PatientName   string    `db:"patient_name" json:"patient_name"`
	TotalFee      float64   `db:"total_fee" json:"total_fee"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// DoctorFeeSummary aggregates one doctor's entries over a period.
type DoctorFeeSummary struct {
	DoctorID   uuid.UUID `json:"doctor_id"`
	DoctorName string    `json:"doctor_name"`
	VisitCount int       `json:"visit_count"`
	TotalFee   float64   `json:"total_fee"`
}
