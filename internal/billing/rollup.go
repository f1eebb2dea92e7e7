package billing

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/duty-pay/internal/tariff"
)

// RollupRow aggregates ledger rows of one grade (and duty type in
// multiplier mode)
type RollupRow struct {
	Grade       tariff.Grade    `json:"grade"`
	DutyType    string          `json:"duty_type,omitempty"`
	TotalHours  decimal.Decimal `json:"total_hours"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Rollup groups a ledger by grade, adding the duty type to the key in
// multiplier mode. Rows are sorted by grade then duty type; an empty ledger
// gives an empty, non-nil slice.
func Rollup(mode tariff.Mode, ledger []PricedBlock) []RollupRow {
	type key struct {
		grade    tariff.Grade
		dutyType string
	}

	groups := make(map[key]*RollupRow)
	for _, b := range ledger {
		k := key{grade: b.Grade}
		if mode == tariff.ModeMultiplier {
			k.dutyType = b.DutyType
		}
		row, ok := groups[k]
		if !ok {
			row = &RollupRow{Grade: k.grade, DutyType: k.dutyType, TotalHours: decimal.Zero, TotalAmount: decimal.Zero}
			groups[k] = row
		}
		row.TotalHours = row.TotalHours.Add(b.Hours)
		row.TotalAmount = row.TotalAmount.Add(b.Amount)
	}

	rows := make([]RollupRow, 0, len(groups))
	for _, row := range groups {
		row.TotalAmount = RoundMoney(row.TotalAmount)
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Grade != rows[j].Grade {
			return rows[i].Grade < rows[j].Grade
		}
		return rows[i].DutyType < rows[j].DutyType
	})

	return rows
}
