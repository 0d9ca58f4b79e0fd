package revenue

import (
	"testing"
	"time"

	"github.com/cursivehq/revenue/internal/domain/model"
)

func TestBuildDashboardOverviewAndBreakdowns(t *testing.T) {
	now := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)

	growth := purchase("acc-1", time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC), "49.99")
	growth.PackageName = "growth"
	growth.Credits = 500
	growth.AccountName = "Northwind"
	starter := purchase("acc-2", time.Date(2026, time.March, 2, 18, 0, 0, 0, time.UTC), "19.99")
	unnamedPackage := purchase("acc-2", time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC), "5.00")
	unnamedPackage.PackageName = " "
	currentMonth := []model.PurchaseRecord{growth, starter, unnamedPackage}

	older := purchase("acc-3", time.Date(2026, time.January, 20, 8, 0, 0, 0, time.UTC), "300")

	in := Inputs{
		CurrentMonth:   currentMonth,
		ForecastWindow: append([]model.PurchaseRecord{older}, currentMonth...),
		DailyWindow:    currentMonth,
		AllTime:        append([]model.PurchaseRecord{older}, currentMonth...),
		Redemptions: []model.RedemptionRecord{
			{AccountID: "acc-1", CreatedAt: now, CreditsUsed: 40},
			{AccountID: "acc-2", CreatedAt: now, CreditsUsed: 2},
		},
		PendingPayouts: []model.PayoutRequest{
			{PartnerID: "p-1", Amount: usd("120.50")},
			{PartnerID: "p-2", Amount: usd("79.50")},
		},
		Earnings: []model.EarningsRecord{
			{PartnerID: "partner-aaaaaaaa-1", Amount: usd("10")},
			{PartnerID: "partner-bbbbbbbb-2", PartnerName: "Lead Co", Amount: usd("30")},
			{PartnerID: "partner-aaaaaaaa-1", Amount: usd("5")},
		},
	}

	dashboard := BuildDashboard(in, now, Options{})

	overview := dashboard.Overview
	if overview.CreditsSoldCount != 3 || overview.CreditsSoldUnits != 700 {
		t.Fatalf("unexpected credits sold: %+v", overview)
	}
	if !overview.CreditsSoldValue.Equal(usd("74.98")) || !overview.MRR.Current.Equal(usd("74.98")) {
		t.Fatalf("unexpected sold value: %s", overview.CreditsSoldValue)
	}
	if overview.MRR.GrowthPercent != nil {
		t.Fatalf("expected nil growth with empty previous month")
	}
	if overview.CreditsRedeemed != 42 || overview.ActiveAccounts != 2 {
		t.Fatalf("unexpected redemption/activity: %+v", overview)
	}
	if overview.PendingPayoutsCount != 2 || !overview.PendingPayoutsValue.Equal(usd("200")) {
		t.Fatalf("unexpected pending payouts: %+v", overview)
	}
	if !overview.CommissionsThisMonth.Equal(usd("45")) {
		t.Fatalf("unexpected commissions: %s", overview.CommissionsThisMonth)
	}

	if dashboard.Forecast.MonthsUsed != 2 {
		t.Fatalf("expected january and march buckets, got %+v", dashboard.Forecast)
	}

	if len(dashboard.DailyRevenue) != 2 {
		t.Fatalf("unexpected daily rows: %+v", dashboard.DailyRevenue)
	}
	first := dashboard.DailyRevenue[0]
	if first.Date != "2026-03-02" || first.Count != 2 || first.Credits != 600 || !first.Value.Equal(usd("69.98")) {
		t.Fatalf("unexpected first daily row: %+v", first)
	}
	if dashboard.DailyRevenue[1].Date != "2026-03-10" {
		t.Fatalf("daily rows must be ordered by date: %+v", dashboard.DailyRevenue)
	}

	if len(dashboard.TopSpenders) != 3 || dashboard.TopSpenders[0].AccountID != "acc-3" {
		t.Fatalf("unexpected top spenders: %+v", dashboard.TopSpenders)
	}
	if dashboard.TopSpenders[1].Name != "Northwind" || !dashboard.TopSpenders[1].ThisMonthSpend.Equal(usd("49.99")) {
		t.Fatalf("unexpected second spender: %+v", dashboard.TopSpenders[1])
	}

	packages := map[string]PackageRevenue{}
	for _, p := range dashboard.RevenueByPackage {
		packages[p.PackageName] = p
	}
	if packages["starter"].Count != 2 || !packages["starter"].TotalValue.Equal(usd("319.99")) {
		t.Fatalf("unexpected starter package row: %+v", packages["starter"])
	}
	if packages["unknown"].Count != 1 {
		t.Fatalf("expected blank package names grouped as unknown: %+v", dashboard.RevenueByPackage)
	}
	if dashboard.RevenueByPackage[0].PackageName != "starter" {
		t.Fatalf("packages must be ordered by value: %+v", dashboard.RevenueByPackage)
	}

	if len(dashboard.TopPartners) != 2 {
		t.Fatalf("unexpected partners: %+v", dashboard.TopPartners)
	}
	if dashboard.TopPartners[0].Name != "Lead Co" || !dashboard.TopPartners[0].Earnings.Equal(usd("30")) {
		t.Fatalf("unexpected top partner: %+v", dashboard.TopPartners[0])
	}
	if dashboard.TopPartners[1].Name != "partner-" || !dashboard.TopPartners[1].Earnings.Equal(usd("15")) {
		t.Fatalf("unexpected fallback partner: %+v", dashboard.TopPartners[1])
	}
}

func TestBuildDashboardLimitsTopLists(t *testing.T) {
	now := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)

	var all []model.PurchaseRecord
	var candidates []model.PurchaseRecord
	for i := 0; i < 12; i++ {
		id := string(rune('a'+i)) + "-account"
		all = append(all, purchase(id, now.AddDate(0, -1, 0), "10"))
		candidates = append(candidates, purchase(id, now.AddDate(0, 0, -40), "10"))
	}

	dashboard := BuildDashboard(Inputs{AllTime: all, ChurnCandidates: candidates}, now, Options{TopSpenders: 10, TopChurned: 5})
	if len(dashboard.TopSpenders) != 10 {
		t.Fatalf("unexpected spenders count: %d", len(dashboard.TopSpenders))
	}
	if dashboard.Retention.ChurnedCount != 12 || len(dashboard.Retention.ChurnedAccounts) != 5 {
		t.Fatalf("unexpected retention: count=%d shown=%d", dashboard.Retention.ChurnedCount, len(dashboard.Retention.ChurnedAccounts))
	}
	if dashboard.Retention.AtRiskCount != 0 {
		t.Fatalf("40-day-old purchases must not be at-risk: %d", dashboard.Retention.AtRiskCount)
	}
}

func TestBuildDashboardEmptyInputs(t *testing.T) {
	dashboard := BuildDashboard(Inputs{}, time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC), Options{})

	if !dashboard.Overview.MRR.Current.IsZero() || dashboard.Forecast.Projected != 0 {
		t.Fatalf("expected zero dashboard: %+v", dashboard)
	}
	if len(dashboard.DailyRevenue) != 0 || len(dashboard.TopSpenders) != 0 || len(dashboard.Retention.ChurnedAccounts) != 0 {
		t.Fatalf("expected empty lists: %+v", dashboard)
	}
}
