package storage

import (
	"context"
	"fmt"

	"github.com/studyhub/session-guard/internal/models"
)

// CreateOrder добавляет запись платёжного заказа и возвращает её ID.
func (s *Storage) CreateOrder(ctx context.Context, order models.PaymentOrder) (int, error) {
	const op = "storage.CreateOrder"
	var id int
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO payment_orders (user_uid, order_id, plan_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		order.UserUID, order.OrderID, order.PlanID, order.Amount, order.Currency, order.Status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// MarkOrderStatus обновляет статус заказа по идентификатору шлюза
// и возвращает количество затронутых строк.
func (s *Storage) MarkOrderStatus(ctx context.Context, orderID, status string) (int, error) {
	const op = "storage.MarkOrderStatus"
	res, err := s.DB.ExecContext(ctx,
		`UPDATE payment_orders SET status = $1 WHERE order_id = $2`, status, orderID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(count), nil
}

// GetOrderByID возвращает заказ по идентификатору шлюза.
func (s *Storage) GetOrderByID(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	const op = "storage.GetOrderByID"
	var order models.PaymentOrder
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, user_uid, order_id, plan_id, amount, currency, status, created_at
		FROM payment_orders
		WHERE order_id = $1`, orderID,
	).Scan(&order.ID, &order.UserUID, &order.OrderID, &order.PlanID,
		&order.Amount, &order.Currency, &order.Status, &order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &order, nil
}

// ListOrders возвращает журнал заказов пользователя с пагинацией,
// новые записи первыми.
func (s *Storage) ListOrders(ctx context.Context, userUID string, limit, offset int) ([]*models.PaymentOrder, error) {
	const op = "storage.ListOrders"
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, user_uid, order_id, plan_id, amount, currency, status, created_at
		FROM payment_orders
		WHERE user_uid = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var orders []*models.PaymentOrder
	for rows.Next() {
		var order models.PaymentOrder
		if err := rows.Scan(&order.ID, &order.UserUID, &order.OrderID, &order.PlanID,
			&order.Amount, &order.Currency, &order.Status, &order.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		orders = append(orders, &order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}
