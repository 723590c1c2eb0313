package service_test

import (
	"testing"
	"time"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/circulation/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestOverdueFine(t *testing.T) {
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rate := decimal.RequireFromString("0.50")

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{name: "early", now: due.Add(-time.Hour), want: "0"},
		{name: "exactly due", now: due, want: "0"},
		{name: "one minute late", now: due.Add(time.Minute), want: "0.5"},
		{name: "six days", now: due.AddDate(0, 0, 6), want: "3"},
		{name: "six days and change", now: due.AddDate(0, 0, 6).Add(time.Second), want: "3.5"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := service.OverdueFine(due, tt.now, rate)
			require.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestCapFine(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		owed   string
		limit  string
		want   string
	}{
		{name: "under limit", amount: "3", owed: "0", limit: "50", want: "3"},
		{name: "partial headroom", amount: "10", owed: "45", limit: "50", want: "5"},
		{name: "at limit", amount: "10", owed: "50", limit: "50", want: "0"},
		{name: "over limit", amount: "10", owed: "60", limit: "50", want: "0"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			m := model.Member{
				TotalFinesOwed: decimal.RequireFromString(tt.owed),
				MaxFineLimit:   decimal.RequireFromString(tt.limit),
			}
			got := service.CapFine(decimal.RequireFromString(tt.amount), m)
			require.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}
