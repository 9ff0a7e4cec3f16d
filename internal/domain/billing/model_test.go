package billing

import (
	"testing"
)

func TestBillDoctorFeeLineFromCatalog(t *testing.T) {
	fee := 250.0
	svc := &ClinicService{Name: "Doctor Fee", Price: 400, DoctorFee: &fee}

	b := NewBill()
	b.AddDoctorFeeLine(svc)

	if len(b.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(b.Items))
	}
	item := b.Items[0]
	if item.Price != 400 || item.DoctorFee != 250 || item.Total != 400 {
		t.Errorf("unexpected doctor fee line: %+v", item)
	}
}

func TestBillDoctorFeeLineFallback(t *testing.T) {
	b := NewBill()
	b.AddDoctorFeeLine(nil)

	item := b.Items[0]
	if item.Price != DefaultDoctorFeePrice || item.DoctorFee != DefaultDoctorFee {
		t.Errorf("expected fallback fee line, got %+v", item)
	}
}

func TestBillDoctorFeeLineIsFirst(t *testing.T) {
	b := NewBill()
	if err := b.AddItem("Paracetamol 500mg", 10, 1.5, 0); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	b.AddDoctorFeeLine(nil)

	if b.Items[0].Description != "Doctor Fee" {
		t.Errorf("expected doctor fee first, got %s", b.Items[0].Description)
	}
}

func TestBillTotals(t *testing.T) {
	// A consultation with two paracetamol: 300 + 2 x 1.5 = 303.
	b := NewBill()
	b.AddDoctorFeeLine(nil)
	if err := b.AddItem("Paracetamol 500mg", 2, 1.5, 0); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	if got := b.Subtotal(); got != 303 {
		t.Errorf("expected subtotal 303, got %v", got)
	}
	if got := b.GrandTotal(); got != 303 {
		t.Errorf("expected grand total 303, got %v", got)
	}
}

func TestBillLineCountTracksPrescriptions(t *testing.T) {
	b := NewBill()
	b.AddDoctorFeeLine(nil)
	for i := 0; i < 4; i++ {
		if err := b.AddItem("Med", 1, 10, 0); err != nil {
			t.Fatalf("AddItem failed: %v", err)
		}
	}
	if len(b.Items) != 5 {
		t.Errorf("expected fee line plus 4 prescriptions, got %d items", len(b.Items))
	}
}

func TestBillDiscountClampsAtZero(t *testing.T) {
	b := NewBill()
	if err := b.AddItem("Dressing", 1, 50, 0); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if err := b.SetDiscount(80); err != nil {
		t.Fatalf("SetDiscount failed: %v", err)
	}

	if got := b.GrandTotal(); got != 0 {
		t.Errorf("expected grand total clamped at 0, got %v", got)
	}
	if err := b.SetDiscount(-5); err == nil {
		t.Error("expected error for negative discount")
	}
}

func TestBillChange(t *testing.T) {
	b := NewBill()
	if err := b.AddItem("Consult", 1, 300, 0); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	if got := b.Change(500); got != 200 {
		t.Errorf("expected change 200, got %v", got)
	}
	if got := b.Change(100); got != 0 {
		t.Errorf("expected change clamped at 0, got %v", got)
	}
}

func TestBillItemValidation(t *testing.T) {
	b := NewBill()
	if err := b.AddItem("  ", 1, 10, 0); err == nil {
		t.Error("expected error for empty description")
	}
	if err := b.AddItem("A", 0, 10, 0); err == nil {
		t.Error("expected error for zero amount")
	}
	if err := b.AddItem("A", 1, -1, 0); err == nil {
		t.Error("expected error for negative price")
	}
}

func TestBillUpdateItem(t *testing.T) {
	b := NewBill()
	if err := b.AddItem("Amoxicillin", 10, 5, 0); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	if err := b.UpdateItem(0, 20, 4); err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}
	if b.Items[0].Total != 80 {
		t.Errorf("expected recomputed total 80, got %v", b.Items[0].Total)
	}

	if err := b.UpdateItem(5, 1, 1); err == nil {
		t.Error("expected error for out-of-range index")
	}
	if err := b.UpdateItem(0, -1, 1); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestBillRemoveItem(t *testing.T) {
	b := NewBill()
	if err := b.AddItem("A", 1, 10, 0); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if err := b.AddItem("B", 1, 20, 0); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	if err := b.RemoveItem(0); err != nil {
		t.Fatalf("RemoveItem failed: %v", err)
	}
	if len(b.Items) != 1 || b.Items[0].Description != "B" {
		t.Errorf("unexpected items after remove: %+v", b.Items)
	}
	if err := b.RemoveItem(7); err == nil {
		t.Error("expected error for out-of-range index")
	}
}

func TestBillTotalDoctorFee(t *testing.T) {
	b := NewBill()
	b.AddDoctorFeeLine(nil) // fee 300
	if err := b.AddItem("Injection", 2, 100, 50); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if err := b.AddItem("Paracetamol", 10, 1.5, 0); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	if got := b.TotalDoctorFee(); got != 300+2*50 {
		t.Errorf("expected doctor fee 400, got %v", got)
	}
}

func TestBillTotalDoctorFeeZeroWithoutFeeLines(t *testing.T) {
	b := NewBill()
	if err := b.AddItem("Bandage", 3, 20, 0); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if got := b.TotalDoctorFee(); got != 0 {
		t.Errorf("expected zero doctor fee, got %v", got)
	}
}
