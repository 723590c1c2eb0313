package service

import (
	"time"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/shopspring/decimal"
)

// OverdueFine charges rate for every started day past due.
func OverdueFine(due, now time.Time, rate decimal.Decimal) decimal.Decimal {
	late := model.DaysLate(due, now)
	if late == 0 {
		return decimal.Zero
	}
	return rate.Mul(decimal.NewFromInt(int64(late)))
}

// CapFine limits amount to the member's remaining headroom under MaxFineLimit.
func CapFine(amount decimal.Decimal, m model.Member) decimal.Decimal {
	headroom := m.MaxFineLimit.Sub(m.TotalFinesOwed)
	if headroom.IsNegative() {
		headroom = decimal.Zero
	}
	return decimal.Min(amount, headroom)
}
