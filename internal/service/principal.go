package service

import (
	"strconv"

	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/domain/errs"
)

// Principal 由外部認證中心簽發的 token 解析而來
type Principal struct {
	UserID int
	Role   constants.Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == constants.RoleAdmin
}

// Actor 寫入狀態歷程用
func (p Principal) Actor() string {
	if p.IsAdmin() {
		return "admin:" + strconv.Itoa(p.UserID)
	}
	return strconv.Itoa(p.UserID)
}

func (p Principal) canAccess(ownerID int) bool {
	return p.IsAdmin() || p.UserID == ownerID
}

func requireAdmin(p Principal, action string) error {
	if !p.IsAdmin() {
		return errs.Unauthorizedf("%s requires admin role", action)
	}
	return nil
}
