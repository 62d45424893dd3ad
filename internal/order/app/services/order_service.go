package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"deliveryhub/internal/marketing"
	"deliveryhub/internal/order/app/core"
	"deliveryhub/internal/order/domain/dto"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
	"deliveryhub/internal/xpkg/models"
)

type OrderService struct {
	orderRepo   core.IOrderRepo
	catalogRepo core.ICatalogRepo
	referrals   core.IReferrals
	mylog       logger.Logger
	now         func() time.Time
}

func NewOrderService(
	orderRepo core.IOrderRepo,
	catalogRepo core.ICatalogRepo,
	referrals core.IReferrals,
	mylogger logger.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		catalogRepo: catalogRepo,
		referrals:   referrals,
		mylog:       mylogger,
		now:         time.Now,
	}
}

// Create prices the order from the menu and stores it as pending.
func (os *OrderService) Create(ctx context.Context, customer httpx.Identity, req dto.CreateOrderRequest) (models.Order, error) {
	mylog := os.mylog.Action("create_order")

	if err := os.ValidateOrder(req); err != nil {
		return models.Order{}, err
	}

	restaurant, err := os.catalogRepo.Restaurant(ctx, req.RestaurantID)
	if err != nil {
		return models.Order{}, fmt.Errorf("restaurant %s: %w", req.RestaurantID, err)
	}
	if restaurant.Status != models.RestaurantActive || !restaurant.IsOpen {
		return models.Order{}, core.ErrRestaurantClosed
	}

	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.MenuItemID)
	}
	menu, err := os.catalogRepo.MenuItems(ctx, restaurant.ID, ids)
	if err != nil {
		return models.Order{}, fmt.Errorf("load menu items: %w", err)
	}

	order := models.Order{
		CustomerID:    customer.UserID,
		RestaurantID:  restaurant.ID,
		Type:          req.Type,
		Status:        models.StatusPending,
		TipCents:      req.TipCents,
		Notes:         strings.TrimSpace(req.Notes),
		UpdatedByRole: customer.Role,
	}
	for i, item := range req.Items {
		m, ok := menu[item.MenuItemID]
		if !ok || !m.Available {
			return models.Order{}, fmt.Errorf("item %d: %w", i+1, core.ErrItemUnavailable)
		}
		order.Items = append(order.Items, models.OrderItem{
			MenuItemID:     m.ID,
			Name:           m.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: m.PriceCents,
		})
		order.SubtotalCents += m.PriceCents * int64(item.Quantity)
	}

	if req.Type == models.OrderDelivery {
		order.DeliveryAddress = strings.TrimSpace(req.DeliveryAddress)
		order.DeliveryLat = req.DeliveryLat
		order.DeliveryLng = req.DeliveryLng
		order.DeliveryFeeCents = restaurant.DeliveryFeeCents
	}

	if code := marketing.NormalizeCode(req.PromoCode); code != "" {
		promo, err := os.catalogRepo.Promo(ctx, code)
		if err != nil {
			if errors.Is(err, xerrors.ErrNotFound) {
				return models.Order{}, marketing.ErrPromoUnknown
			}
			return models.Order{}, err
		}
		if err := promo.Check(order.SubtotalCents, os.now()); err != nil {
			return models.Order{}, err
		}
		order.DiscountCents = promo.Discount(order.SubtotalCents)
		order.PromoCode = &promo.Code
	}

	order.TotalCents = order.SubtotalCents - order.DiscountCents + order.DeliveryFeeCents + order.TipCents

	newOrder, err := os.orderRepo.Create(ctx, order)
	if err != nil {
		if errors.Is(err, xerrors.ErrDBConn) {
			mylog.Error("Failed to connect to db", err)
			return models.Order{}, fmt.Errorf("cannot connect to db: %w", err)
		}
		if errors.Is(err, marketing.ErrPromoExhausted) {
			return models.Order{}, err
		}
		mylog.Error("Failed to save order record in db", err)
		return models.Order{}, fmt.Errorf("cannot save order in db: %w", err)
	}

	httpx.OrdersCreated.Inc()
	mylog.Info("Order created successfully", "order_number", newOrder.Number, "total_cents", newOrder.TotalCents)
	return newOrder, nil
}

func (os *OrderService) Get(ctx context.Context, id httpx.Identity, number string) (models.Order, error) {
	order, err := os.orderRepo.GetByNumber(ctx, number)
	if err != nil {
		return models.Order{}, err
	}
	if !Visible(order, id) {
		return models.Order{}, xerrors.ErrNotFound
	}
	return order, nil
}

// List returns the orders the caller is allowed to see.
func (os *OrderService) List(ctx context.Context, id httpx.Identity, filter dto.OrderFilter) ([]models.Order, error) {
	switch id.Role {
	case httpx.RoleCustomer:
		filter.CustomerID = id.UserID
	case httpx.RoleRestaurant:
		if id.RestaurantID == "" {
			return nil, xerrors.ErrForbidden
		}
		filter.RestaurantID = id.RestaurantID
	case httpx.RoleDriver:
		filter.DriverID = id.UserID
	case httpx.RoleAdmin:
	default:
		return nil, xerrors.ErrForbidden
	}
	if filter.Status != "" && !isStatus(filter.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", xerrors.ErrInvalidInput, filter.Status)
	}
	return os.orderRepo.List(ctx, filter)
}

// UpdateStatus applies one lifecycle transition on behalf of id.
func (os *OrderService) UpdateStatus(ctx context.Context, id httpx.Identity, number string, req dto.StatusRequest) (models.Order, error) {
	mylog := os.mylog.Action("update_status").With("order_number", number, "to", req.Status)

	if len(req.Note) > core.MaxNotesLen {
		return models.Order{}, fmt.Errorf("%w: note is longer than %d", xerrors.ErrInvalidInput, core.MaxNotesLen)
	}

	order, err := os.Get(ctx, id, number)
	if err != nil {
		return models.Order{}, err
	}
	if err := CanTransition(order, req.Status, id); err != nil {
		return models.Order{}, err
	}

	updated, err := os.orderRepo.Transition(ctx, order, dto.StatusChange{
		To:        req.Status,
		ChangedBy: id.UserID,
		Role:      id.Role,
		Note:      req.Note,
		At:        os.now().UTC(),
	})
	if err != nil {
		mylog.Error("Failed to update order status", err)
		return models.Order{}, err
	}
	httpx.OrderTransitions.WithLabelValues(updated.Status).Inc()
	mylog.Info("Order status updated", "from", order.Status, "by", id.Role)

	if updated.Status == models.StatusDelivered && os.referrals != nil {
		// the payout scheduler sweep retries referrals whose evaluation fails here
		if _, _, err := os.referrals.OnOrderDelivered(ctx, updated.CustomerID); err != nil {
			mylog.Warn("referral evaluation failed", "customer_id", updated.CustomerID, "err", err.Error())
		}
	}
	return updated, nil
}

// ValidateOrder validates the request shape before anything is loaded.
func (os *OrderService) ValidateOrder(req dto.CreateOrderRequest) error {
	if req.RestaurantID == "" {
		return fmt.Errorf("restaurant_id: %w", xerrors.ErrFieldIsEmpty)
	}
	if err := os.validateOrderType(req); err != nil {
		return fmt.Errorf("invalid order type: %w", err)
	}
	if err := os.validateOrderItems(req.Items); err != nil {
		return fmt.Errorf("invalid order items: %w", err)
	}
	if req.TipCents < 0 || req.TipCents > core.MaxTipCents {
		return fmt.Errorf("%w: tip_cents must be in range [0, %d]", xerrors.ErrInvalidInput, core.MaxTipCents)
	}
	if len(req.Notes) > core.MaxNotesLen {
		return fmt.Errorf("%w: notes longer than %d", xerrors.ErrInvalidInput, core.MaxNotesLen)
	}
	return nil
}

func (os *OrderService) validateOrderType(req dto.CreateOrderRequest) error {
	if req.Type == "" {
		return xerrors.ErrFieldIsEmpty
	}
	if !core.AllowedTypes[req.Type] {
		return fmt.Errorf("%w: undefined type: %s", xerrors.ErrInvalidInput, req.Type)
	}

	if req.Type == models.OrderDelivery {
		addr := strings.TrimSpace(req.DeliveryAddress)
		if addr == "" {
			return fmt.Errorf("delivery_address: %w", xerrors.ErrFieldIsEmpty)
		}
		if l := len(addr); l < core.MinDeliveryAddressLen || l > core.MaxDeliveryAddressLen {
			return fmt.Errorf("%w: address length: %d, must be in range [%d, %d]", xerrors.ErrInvalidInput, l, core.MinDeliveryAddressLen, core.MaxDeliveryAddressLen)
		}
		if (req.DeliveryLat == nil) != (req.DeliveryLng == nil) {
			return fmt.Errorf("%w: delivery_lat and delivery_lng go together", xerrors.ErrInvalidInput)
		}
		if req.DeliveryLat != nil && (*req.DeliveryLat < -90 || *req.DeliveryLat > 90 || *req.DeliveryLng < -180 || *req.DeliveryLng > 180) {
			return fmt.Errorf("%w: delivery coordinates out of range", xerrors.ErrInvalidInput)
		}
	}
	return nil
}

func (os *OrderService) validateOrderItems(items []dto.Item) error {
	if len(items) == 0 {
		return xerrors.ErrFieldIsEmpty
	}
	if len(items) < core.MinItems || len(items) > core.MaxItems {
		return fmt.Errorf("%w: amount of items: %d, must be in range [%d, %d]", xerrors.ErrInvalidInput, len(items), core.MinItems, core.MaxItems)
	}

	seen := make(map[string]bool, len(items))
	for i, item := range items {
		if item.MenuItemID == "" {
			return fmt.Errorf("item %d: menu_item_id: %w", i+1, xerrors.ErrFieldIsEmpty)
		}
		if seen[item.MenuItemID] {
			return fmt.Errorf("%w: item %d: menu item listed twice", xerrors.ErrInvalidInput, i+1)
		}
		seen[item.MenuItemID] = true
		if item.Quantity < core.MinItemQuantity || item.Quantity > core.MaxItemQuantity {
			return fmt.Errorf("%w: item %d: quantity: %d, must be in range [%d, %d]", xerrors.ErrInvalidInput, i+1, item.Quantity, core.MinItemQuantity, core.MaxItemQuantity)
		}
	}
	return nil
}

func isStatus(s string) bool {
	if s == models.StatusPending {
		return true
	}
	for _, st := range statusOrder {
		if st == s {
			return true
		}
	}
	return false
}
