package dto

import "time"

type MRRResponse struct {
	Current       float64  `json:"current"`
	Previous      float64  `json:"previous"`
	GrowthPercent *float64 `json:"growth_percent"`
	ARR           float64  `json:"arr"`
}

type CreditsSoldResponse struct {
	Count int     `json:"count"`
	Units int64   `json:"units"`
	Value float64 `json:"value"`
}

type PendingPayoutsResponse struct {
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

type RevenueOverviewResponse struct {
	MRR                  MRRResponse            `json:"mrr"`
	CreditsSold          CreditsSoldResponse    `json:"credits_sold"`
	CreditsRedeemed      int64                  `json:"credits_redeemed"`
	ActiveAccounts       int                    `json:"active_accounts"`
	PendingPayouts       PendingPayoutsResponse `json:"pending_payouts"`
	CommissionsThisMonth float64                `json:"commissions_this_month"`
}

type ForecastResponse struct {
	Projected  float64 `json:"projected"`
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	MonthsUsed int     `json:"months_used"`
}

type ChurnedAccountResponse struct {
	AccountID    string    `json:"account_id"`
	Name         string    `json:"name"`
	LastPurchase time.Time `json:"last_purchase"`
	TotalSpend   float64   `json:"total_spend"`
}

type RetentionResponse struct {
	ChurnedCount    int                      `json:"churned_count"`
	AtRiskCount     int                      `json:"at_risk_count"`
	ChurnedAccounts []ChurnedAccountResponse `json:"churned_accounts"`
}

type DailyRevenueItem struct {
	Date    string  `json:"date"`
	Credits int64   `json:"credits"`
	Value   float64 `json:"value"`
	Count   int     `json:"count"`
}

type TopSpenderItem struct {
	AccountID      string  `json:"account_id"`
	Name           string  `json:"name"`
	TotalSpend     float64 `json:"total_spend"`
	ThisMonthSpend float64 `json:"this_month_spend"`
}

type PackageRevenueItem struct {
	PackageName  string  `json:"package_name"`
	Count        int     `json:"count"`
	TotalCredits int64   `json:"total_credits"`
	TotalValue   float64 `json:"total_value"`
}

type PartnerEarningsItem struct {
	PartnerID string  `json:"partner_id"`
	Name      string  `json:"name"`
	Earnings  float64 `json:"earnings"`
}

type RevenueDashboardResponse struct {
	GeneratedAt      time.Time               `json:"generated_at"`
	Overview         RevenueOverviewResponse `json:"overview"`
	Forecast         ForecastResponse        `json:"forecast"`
	Retention        RetentionResponse       `json:"retention"`
	DailyRevenue     []DailyRevenueItem      `json:"daily_revenue"`
	TopSpenders      []TopSpenderItem        `json:"top_spenders"`
	RevenueByPackage []PackageRevenueItem    `json:"revenue_by_package"`
	TopPartners      []PartnerEarningsItem   `json:"top_partners"`
}

type RevenueSnapshotItem struct {
	ID          string    `json:"id"`
	ObjectKey   string    `json:"object_key"`
	GeneratedAt time.Time `json:"generated_at"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
	DownloadURL string    `json:"download_url,omitempty"`
}

type RevenueSnapshotsResponse struct {
	Items []RevenueSnapshotItem `json:"items"`
}
