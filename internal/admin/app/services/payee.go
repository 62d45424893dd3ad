package services

import (
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/models"
)

// PayeeFor maps the caller to the payee whose balance they may read. Customers
// are paid as affiliates.
func PayeeFor(id httpx.Identity) (payeeType, payeeID string, err error) {
	switch id.Role {
	case httpx.RoleRestaurant:
		if id.RestaurantID == "" {
			return "", "", xerrors.ErrForbidden
		}
		return models.PayeeRestaurant, id.RestaurantID, nil
	case httpx.RoleDriver:
		return models.PayeeDriver, id.UserID, nil
	case httpx.RoleCustomer:
		return models.PayeeAffiliate, id.UserID, nil
	default:
		return "", "", xerrors.ErrForbidden
	}
}
