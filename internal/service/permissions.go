package service

import "combopos/backend/internal/domain"

type Permission string

const (
	PermEditOrder        Permission = "order:edit"
	PermApplyCombo       Permission = "combo:apply"
	PermCustomizeCombo   Permission = "combo:customize"
	PermManagePromotions Permission = "promotion:manage"
	PermViewAudit        Permission = "audit:view"
	PermSweepOrders      Permission = "order:sweep"
)

var rolePermissions = map[string]map[Permission]bool{
	domain.RoleCashier: {
		PermEditOrder:      true,
		PermApplyCombo:     true,
		PermCustomizeCombo: true,
	},
	domain.RoleAdmin: {
		PermEditOrder:        true,
		PermApplyCombo:       true,
		PermCustomizeCombo:   true,
		PermManagePromotions: true,
		PermViewAudit:        true,
		PermSweepOrders:      true,
	},
	"system": {
		PermSweepOrders: true,
	},
}

// HasPermission reports whether role grants perm. Unknown roles grant nothing.
func HasPermission(role string, perm Permission) bool {
	return rolePermissions[role][perm]
}
