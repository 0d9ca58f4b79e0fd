package revenue

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cursivehq/revenue/internal/domain/model"
	"github.com/cursivehq/revenue/internal/domain/rules"
)

const (
	defaultDailyWindow = 30 * 24 * time.Hour
	defaultTopSpenders = 10
	defaultTopPartners = 5
	defaultTopChurned  = 5
)

// Inputs are the already-fetched, completed-status record sets a dashboard is built from.
type Inputs struct {
	CurrentMonth    []model.PurchaseRecord
	PreviousMonth   []model.PurchaseRecord
	ForecastWindow  []model.PurchaseRecord
	DailyWindow     []model.PurchaseRecord
	AllTime         []model.PurchaseRecord
	ChurnCandidates []model.PurchaseRecord
	RecentPurchases []model.PurchaseRecord
	Redemptions     []model.RedemptionRecord
	PendingPayouts  []model.PayoutRequest
	Earnings        []model.EarningsRecord
}

type Options struct {
	Location    *time.Location
	Windows     rules.ChurnWindows
	DailyWindow time.Duration
	TopSpenders int
	TopPartners int
	TopChurned  int
}

type Overview struct {
	MRR                  MRR             `json:"mrr"`
	CreditsSoldCount     int             `json:"credits_sold_count"`
	CreditsSoldUnits     int64           `json:"credits_sold_units"`
	CreditsSoldValue     decimal.Decimal `json:"credits_sold_value"`
	CreditsRedeemed      int64           `json:"credits_redeemed"`
	ActiveAccounts       int             `json:"active_accounts"`
	PendingPayoutsCount  int             `json:"pending_payouts_count"`
	PendingPayoutsValue  decimal.Decimal `json:"pending_payouts_value"`
	CommissionsThisMonth decimal.Decimal `json:"commissions_this_month"`
}

type Retention struct {
	ChurnedCount    int               `json:"churned_count"`
	AtRiskCount     int               `json:"at_risk_count"`
	ChurnedAccounts []AccountActivity `json:"churned_accounts"`
}

type DailyRevenue struct {
	Date    string          `json:"date"`
	Credits int64           `json:"credits"`
	Value   decimal.Decimal `json:"value"`
	Count   int             `json:"count"`
}

type Spender struct {
	AccountID      string          `json:"account_id"`
	Name           string          `json:"name"`
	TotalSpend     decimal.Decimal `json:"total_spend"`
	ThisMonthSpend decimal.Decimal `json:"this_month_spend"`
}

type PackageRevenue struct {
	PackageName  string          `json:"package_name"`
	Count        int             `json:"count"`
	TotalCredits int64           `json:"total_credits"`
	TotalValue   decimal.Decimal `json:"total_value"`
}

type PartnerEarnings struct {
	PartnerID string          `json:"partner_id"`
	Name      string          `json:"name"`
	Earnings  decimal.Decimal `json:"earnings"`
}

type Dashboard struct {
	GeneratedAt      time.Time         `json:"generated_at"`
	Overview         Overview          `json:"overview"`
	Forecast         Forecast          `json:"forecast"`
	Retention        Retention         `json:"retention"`
	DailyRevenue     []DailyRevenue    `json:"daily_revenue"`
	TopSpenders      []Spender         `json:"top_spenders"`
	RevenueByPackage []PackageRevenue  `json:"revenue_by_package"`
	TopPartners      []PartnerEarnings `json:"top_partners"`
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if !o.Windows.Valid() {
		o.Windows = rules.DefaultChurnWindows()
	}
	if o.DailyWindow <= 0 {
		o.DailyWindow = defaultDailyWindow
	}
	if o.TopSpenders <= 0 {
		o.TopSpenders = defaultTopSpenders
	}
	if o.TopPartners <= 0 {
		o.TopPartners = defaultTopPartners
	}
	if o.TopChurned <= 0 {
		o.TopChurned = defaultTopChurned
	}
	return o
}

// BuildDashboard folds the inputs into a dashboard. It is pure: the same inputs
// and now always produce the same result.
func BuildDashboard(in Inputs, now time.Time, opts Options) Dashboard {
	opts = opts.withDefaults()
	monthStart := rules.MonthStart(now, opts.Location)
	forecastBase := rules.AddMonths(monthStart, -(rules.ForecastMonths - 1))

	mrr := ComputeMRR(in.CurrentMonth, in.PreviousMonth)
	churn := ClassifyChurn(in.ChurnCandidates, RecentAccountIDs(in.RecentPurchases, now, opts.Windows.Recent), now, opts.Windows)

	return Dashboard{
		GeneratedAt: now.UTC(),
		Overview:    buildOverview(in, mrr),
		Forecast:    ForecastNextMonth(MonthlyPoints(in.ForecastWindow, forecastBase)),
		Retention: Retention{
			ChurnedCount:    len(churn.Churned),
			AtRiskCount:     len(churn.AtRisk),
			ChurnedAccounts: roundActivity(truncate(churn.Churned, opts.TopChurned)),
		},
		DailyRevenue:     dailyRevenue(in.DailyWindow),
		TopSpenders:      topSpenders(in.AllTime, in.CurrentMonth, opts.TopSpenders),
		RevenueByPackage: revenueByPackage(in.AllTime),
		TopPartners:      topPartners(in.Earnings, opts.TopPartners),
	}
}

func buildOverview(in Inputs, mrr MRR) Overview {
	out := Overview{
		MRR:              mrr,
		CreditsSoldCount: len(in.CurrentMonth),
		CreditsSoldValue: mrr.Current,
	}

	active := make(map[string]struct{}, len(in.CurrentMonth))
	for _, p := range in.CurrentMonth {
		out.CreditsSoldUnits += p.Credits
		active[p.AccountID] = struct{}{}
	}
	out.ActiveAccounts = len(active)

	for _, r := range in.Redemptions {
		out.CreditsRedeemed += r.CreditsUsed
	}

	out.PendingPayoutsCount = len(in.PendingPayouts)
	for _, p := range in.PendingPayouts {
		out.PendingPayoutsValue = out.PendingPayoutsValue.Add(p.Amount)
	}
	for _, e := range in.Earnings {
		out.CommissionsThisMonth = out.CommissionsThisMonth.Add(e.Amount)
	}

	return out
}

func dailyRevenue(purchases []model.PurchaseRecord) []DailyRevenue {
	groups := AggregateBy(purchases, Dimension[model.PurchaseRecord]{
		Key:    func(p model.PurchaseRecord) string { return rules.UTCDayKey(p.CreatedAt) },
		Amount: func(p model.PurchaseRecord) decimal.Decimal { return p.AmountPaid },
		Units:  func(p model.PurchaseRecord) int64 { return p.Credits },
	}, 0)

	out := make([]DailyRevenue, 0, len(groups))
	for _, g := range groups {
		out = append(out, DailyRevenue{
			Date:    g.Key,
			Credits: g.SumUnits,
			Value:   g.SumAmount,
			Count:   g.Count,
		})
	}
	slices.SortFunc(out, func(a, b DailyRevenue) int {
		return cmp.Compare(a.Date, b.Date)
	})
	return out
}

func topSpenders(allTime, currentMonth []model.PurchaseRecord, limit int) []Spender {
	groups := AggregateBy(allTime, Dimension[model.PurchaseRecord]{
		Key:    func(p model.PurchaseRecord) string { return p.AccountID },
		Amount: func(p model.PurchaseRecord) decimal.Decimal { return p.AmountPaid },
		Label:  func(p model.PurchaseRecord) string { return p.AccountName },
	}, limit)

	thisMonth := make(map[string]decimal.Decimal, len(currentMonth))
	for _, p := range currentMonth {
		thisMonth[p.AccountID] = thisMonth[p.AccountID].Add(p.AmountPaid)
	}

	out := make([]Spender, 0, len(groups))
	for _, g := range groups {
		out = append(out, Spender{
			AccountID:      g.Key,
			Name:           DisplayName(g.Key, g.Label),
			TotalSpend:     g.SumAmount,
			ThisMonthSpend: thisMonth[g.Key],
		})
	}
	return out
}

func revenueByPackage(allTime []model.PurchaseRecord) []PackageRevenue {
	groups := AggregateBy(allTime, Dimension[model.PurchaseRecord]{
		Key:    packageKey,
		Amount: func(p model.PurchaseRecord) decimal.Decimal { return p.AmountPaid },
		Units:  func(p model.PurchaseRecord) int64 { return p.Credits },
	}, 0)

	out := make([]PackageRevenue, 0, len(groups))
	for _, g := range groups {
		out = append(out, PackageRevenue{
			PackageName:  g.Key,
			Count:        g.Count,
			TotalCredits: g.SumUnits,
			TotalValue:   g.SumAmount,
		})
	}
	return out
}

func topPartners(earnings []model.EarningsRecord, limit int) []PartnerEarnings {
	groups := AggregateBy(earnings, Dimension[model.EarningsRecord]{
		Key:    func(e model.EarningsRecord) string { return e.PartnerID },
		Amount: func(e model.EarningsRecord) decimal.Decimal { return e.Amount },
		Label:  func(e model.EarningsRecord) string { return e.PartnerName },
	}, limit)

	out := make([]PartnerEarnings, 0, len(groups))
	for _, g := range groups {
		out = append(out, PartnerEarnings{
			PartnerID: g.Key,
			Name:      DisplayName(g.Key, g.Label),
			Earnings:  g.SumAmount,
		})
	}
	return out
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func roundActivity(items []AccountActivity) []AccountActivity {
	out := make([]AccountActivity, 0, len(items))
	for _, item := range items {
		item.TotalSpend = item.TotalSpend.Round(2)
		out = append(out, item)
	}
	return out
}
