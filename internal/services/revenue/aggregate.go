package revenue

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cursivehq/revenue/internal/domain/model"
	"github.com/cursivehq/revenue/internal/domain/rules"
)

const (
	displayIDLength = 8
	unknownPackage  = "unknown"

	bandLowFactor  = 0.8
	bandHighFactor = 1.2
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

type MRR struct {
	Current  decimal.Decimal `json:"current"`
	Previous decimal.Decimal `json:"previous"`
	// GrowthPercent is nil when there is no previous-month baseline.
	GrowthPercent *decimal.Decimal `json:"growth_percent"`
	ARR           decimal.Decimal  `json:"arr"`
}

type MonthPoint struct {
	Index int             `json:"index"`
	Total decimal.Decimal `json:"total"`
}

// Forecast is a next-month projection. Low and High are a fixed ±20% band
// around Projected, not a statistical prediction interval.
type Forecast struct {
	Projected  float64 `json:"projected"`
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	MonthsUsed int     `json:"months_used"`
}

type AccountActivity struct {
	AccountID    string          `json:"account_id"`
	Name         string          `json:"name"`
	LastPurchase time.Time       `json:"last_purchase"`
	TotalSpend   decimal.Decimal `json:"total_spend"`
}

type Churn struct {
	Churned []AccountActivity `json:"churned"`
	AtRisk  []AccountActivity `json:"at_risk"`
}

type Group struct {
	Key       string          `json:"key"`
	Label     string          `json:"label,omitempty"`
	Count     int             `json:"count"`
	SumAmount decimal.Decimal `json:"sum_amount"`
	SumUnits  int64           `json:"sum_units"`
}

// Dimension describes how AggregateBy folds records of type T. Units and Label are optional.
type Dimension[T any] struct {
	Key    func(T) string
	Amount func(T) decimal.Decimal
	Units  func(T) int64
	Label  func(T) string
}

func ComputeMRR(current, previous []model.PurchaseRecord) MRR {
	out := MRR{
		Current:  sumPaid(current),
		Previous: sumPaid(previous),
	}
	out.ARR = out.Current.Mul(twelve)

	if !out.Previous.IsZero() {
		growth := out.Current.Sub(out.Previous).Div(out.Previous).Mul(hundred).Round(2)
		out.GrowthPercent = &growth
	}

	return out
}

// MonthlyPoints buckets purchases by calendar month relative to base, keeping
// indexes 0..ForecastMonths-1 that have at least one record.
func MonthlyPoints(purchases []model.PurchaseRecord, base time.Time) []MonthPoint {
	totals := make(map[int]decimal.Decimal, rules.ForecastMonths)
	for _, p := range purchases {
		idx := rules.MonthIndex(base, p.CreatedAt)
		if idx < 0 || idx >= rules.ForecastMonths {
			continue
		}
		totals[idx] = totals[idx].Add(p.AmountPaid)
	}

	points := make([]MonthPoint, 0, len(totals))
	for idx := 0; idx < rules.ForecastMonths; idx++ {
		if total, ok := totals[idx]; ok {
			points = append(points, MonthPoint{Index: idx, Total: total})
		}
	}
	return points
}

func ForecastNextMonth(points []MonthPoint) Forecast {
	slope, intercept := linearRegression(points)
	projected := math.Max(0, slope*float64(rules.ForecastMonths)+intercept)

	return Forecast{
		Projected:  projected,
		Low:        math.Max(0, projected*bandLowFactor),
		High:       projected * bandHighFactor,
		MonthsUsed: len(points),
	}
}

func linearRegression(points []MonthPoint) (float64, float64) {
	n := float64(len(points))
	switch len(points) {
	case 0:
		return 0, 0
	case 1:
		return 0, points[0].Total.InexactFloat64()
	}

	var sumX, sumY, sumXY, sumX2 float64
	for _, p := range points {
		x := float64(p.Index)
		y := p.Total.InexactFloat64()
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	denominator := n*sumX2 - sumX*sumX
	if denominator == 0 {
		return 0, sumY / n
	}

	slope := (n*sumXY - sumX*sumY) / denominator
	intercept := (sumY - slope*sumX) / n
	return slope, intercept
}

// RecentAccountIDs returns accounts with any purchase at or after now-window.
func RecentAccountIDs(purchases []model.PurchaseRecord, now time.Time, window time.Duration) map[string]struct{} {
	cutoff := now.Add(-window)
	out := make(map[string]struct{}, len(purchases))
	for _, p := range purchases {
		if p.CreatedAt.Before(cutoff) {
			continue
		}
		out[p.AccountID] = struct{}{}
	}
	return out
}

// ClassifyChurn evaluates accounts that purchased in [now-Far, now-Recent).
// Accounts present in recent are skipped entirely. At-risk is the subset of
// churned accounts whose last in-window purchase is at or after now-Mid.
func ClassifyChurn(candidates []model.PurchaseRecord, recent map[string]struct{}, now time.Time, windows rules.ChurnWindows) Churn {
	cutoffs := windows.Cutoffs(now)

	byAccount := make(map[string]*AccountActivity)
	for _, p := range candidates {
		if p.CreatedAt.Before(cutoffs.Far) || !p.CreatedAt.Before(cutoffs.Recent) {
			continue
		}
		if _, active := recent[p.AccountID]; active {
			continue
		}

		item, ok := byAccount[p.AccountID]
		if !ok {
			item = &AccountActivity{
				AccountID:    p.AccountID,
				LastPurchase: p.CreatedAt,
			}
			byAccount[p.AccountID] = item
		}
		if item.Name == "" && strings.TrimSpace(p.AccountName) != "" {
			item.Name = strings.TrimSpace(p.AccountName)
		}
		if p.CreatedAt.After(item.LastPurchase) {
			item.LastPurchase = p.CreatedAt
		}
		item.TotalSpend = item.TotalSpend.Add(p.AmountPaid)
	}

	churned := make([]AccountActivity, 0, len(byAccount))
	for _, item := range byAccount {
		item.Name = DisplayName(item.AccountID, item.Name)
		churned = append(churned, *item)
	}
	slices.SortFunc(churned, func(a, b AccountActivity) int {
		if c := b.TotalSpend.Cmp(a.TotalSpend); c != 0 {
			return c
		}
		return cmp.Compare(a.AccountID, b.AccountID)
	})

	atRisk := make([]AccountActivity, 0)
	for _, item := range churned {
		if !item.LastPurchase.Before(cutoffs.Mid) {
			atRisk = append(atRisk, item)
		}
	}

	return Churn{Churned: churned, AtRisk: atRisk}
}

// AggregateBy groups records by dim.Key and orders groups by summed amount,
// largest first. limit <= 0 keeps every group.
func AggregateBy[T any](records []T, dim Dimension[T], limit int) []Group {
	index := make(map[string]int, len(records))
	groups := make([]Group, 0)
	for _, record := range records {
		key := dim.Key(record)
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, Group{Key: key})
		}

		g := groups[pos]
		g.Count++
		g.SumAmount = g.SumAmount.Add(dim.Amount(record))
		if dim.Units != nil {
			g.SumUnits += dim.Units(record)
		}
		if g.Label == "" && dim.Label != nil {
			g.Label = strings.TrimSpace(dim.Label(record))
		}
		groups[pos] = g
	}

	slices.SortStableFunc(groups, func(a, b Group) int {
		return b.SumAmount.Cmp(a.SumAmount)
	})

	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}

// DisplayName falls back to a truncated id when the joined name is missing.
func DisplayName(id, name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if len(id) > displayIDLength {
		return id[:displayIDLength]
	}
	return id
}

func sumPaid(purchases []model.PurchaseRecord) decimal.Decimal {
	total := decimal.Zero
	for _, p := range purchases {
		total = total.Add(p.AmountPaid)
	}
	return total
}

func packageKey(p model.PurchaseRecord) string {
	if name := strings.TrimSpace(p.PackageName); name != "" {
		return name
	}
	return unknownPackage
}
