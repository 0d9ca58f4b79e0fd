package enums

type AdminRole string

const (
	AdminRoleOwner   AdminRole = "OWNER"
	AdminRoleFinance AdminRole = "FINANCE"
	AdminRoleSupport AdminRole = "SUPPORT"
)
