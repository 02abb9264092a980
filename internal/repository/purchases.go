package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/coursemart/internal/model"
)

const purchaseColumns = `id, course_id, user_id, amount, COALESCE(gateway_order_id, ''), status, created_at, updated_at`

func scanPurchase(row pgx.Row) (*model.Purchase, error) {
	var (
		p      model.Purchase
		status string
	)
	err := row.Scan(&p.ID, &p.CourseID, &p.UserID, &p.Amount, &p.GatewayOrderID, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = model.PurchaseStatus(status)
	return &p, nil
}

// CreatePurchase сохраняет новую покупку в статусе pending.
func (r *PostgresRepository) CreatePurchase(ctx context.Context, p *model.Purchase) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO purchases (id, course_id, user_id, amount, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		p.ID, p.CourseID, p.UserID, p.Amount, string(model.PurchaseStatusPending),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create purchase: %w", err)
	}
	p.Status = model.PurchaseStatusPending
	return nil
}

// SetGatewayOrderID записывает идентификатор заказа платёжного шлюза. Уже записанный идентификатор не перезаписывается.
func (r *PostgresRepository) SetGatewayOrderID(ctx context.Context, purchaseID, orderID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE purchases SET gateway_order_id = $2, updated_at = now()
		 WHERE id = $1 AND gateway_order_id IS NULL`,
		purchaseID, orderID,
	)
	if err != nil {
		return fmt.Errorf("set gateway order id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPurchaseNotFound
	}
	return nil
}

// CompletePurchase переводит покупку в статус completed и применяет запись на курс в одной транзакции.
// Условное обновление гарантирует, что из параллельных вызовов побочные эффекты применит ровно один.
func (r *PostgresRepository) CompletePurchase(ctx context.Context, orderID string, unlockLectures bool) (*model.CompletionResult, error) {
	var res model.CompletionResult

	err := r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		res = model.CompletionResult{}

		p, err := scanPurchase(tx.QueryRow(ctx,
			`UPDATE purchases SET status = $2, updated_at = now()
			 WHERE gateway_order_id = $1 AND status = $3
			 RETURNING `+purchaseColumns,
			orderID, string(model.PurchaseStatusCompleted), string(model.PurchaseStatusPending),
		))
		if err == nil {
			res.Purchase = *p
			return applyEnrollment(ctx, tx, p.UserID, p.CourseID, unlockLectures)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("complete purchase: %w", err)
		}

		p, err = scanPurchase(tx.QueryRow(ctx,
			`SELECT `+purchaseColumns+` FROM purchases WHERE gateway_order_id = $1`,
			orderID,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPurchaseNotFound
			}
			return fmt.Errorf("get purchase: %w", err)
		}

		res.Purchase = *p
		res.AlreadyCompleted = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &res, nil
}

// ApplyEnrollment повторно применяет запись пользователя на курс. Каждый шаг идемпотентен.
func (r *PostgresRepository) ApplyEnrollment(ctx context.Context, userID, courseID string, unlockLectures bool) error {
	return r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return applyEnrollment(ctx, tx, userID, courseID, unlockLectures)
	})
}

func applyEnrollment(ctx context.Context, q querier, userID, courseID string, unlockLectures bool) error {
	if unlockLectures {
		_, err := q.Exec(ctx,
			`UPDATE lectures SET is_preview_free = TRUE WHERE course_id = $1 AND NOT is_preview_free`,
			courseID,
		)
		if err != nil {
			return fmt.Errorf("unlock lectures: %w", err)
		}
	}

	_, err := q.Exec(ctx,
		`INSERT INTO user_enrolled_courses (user_id, course_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, courseID,
	)
	if err != nil {
		return fmt.Errorf("add enrolled course: %w", err)
	}

	_, err = q.Exec(ctx,
		`INSERT INTO course_enrolled_students (course_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		courseID, userID,
	)
	if err != nil {
		return fmt.Errorf("add enrolled student: %w", err)
	}

	return nil
}

// HasCompletedPurchase сообщает, купил ли пользователь курс.
func (r *PostgresRepository) HasCompletedPurchase(ctx context.Context, userID, courseID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM purchases WHERE user_id = $1 AND course_id = $2 AND status = $3
		 )`,
		userID, courseID, string(model.PurchaseStatusCompleted),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return exists, nil
}

// GetCompletedPurchasesByCreator возвращает завершённые покупки курсов инструктора.
func (r *PostgresRepository) GetCompletedPurchasesByCreator(ctx context.Context, creatorID string) ([]model.PurchasedCourse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.course_id, p.user_id, p.amount, COALESCE(p.gateway_order_id, ''), p.status,
		        p.created_at, p.updated_at, c.title, c.thumbnail, c.price
		 FROM purchases p
		 JOIN courses c ON c.id = p.course_id
		 WHERE c.creator_id = $1 AND p.status = $2
		 ORDER BY p.updated_at DESC`,
		creatorID, string(model.PurchaseStatusCompleted),
	)
	if err != nil {
		return nil, fmt.Errorf("select purchased courses: %w", err)
	}
	defer rows.Close()

	res := []model.PurchasedCourse{}
	for rows.Next() {
		var (
			pc     model.PurchasedCourse
			status string
		)
		err := rows.Scan(&pc.ID, &pc.CourseID, &pc.UserID, &pc.Amount, &pc.GatewayOrderID, &status,
			&pc.CreatedAt, &pc.UpdatedAt, &pc.Course.Title, &pc.Course.Thumbnail, &pc.Course.Price)
		if err != nil {
			return nil, fmt.Errorf("scan purchased course: %w", err)
		}
		pc.Status = model.PurchaseStatus(status)
		pc.Course.ID = pc.CourseID
		res = append(res, pc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetPurchasesMissingEnrollment возвращает завершённые покупки, для которых запись на курс применена не полностью.
func (r *PostgresRepository) GetPurchasesMissingEnrollment(ctx context.Context, limit int) ([]model.Purchase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+purchaseColumns+`
		 FROM purchases p
		 WHERE p.status = $1
		   AND (NOT EXISTS (SELECT 1 FROM user_enrolled_courses e
		                    WHERE e.user_id = p.user_id AND e.course_id = p.course_id)
		     OR NOT EXISTS (SELECT 1 FROM course_enrolled_students s
		                    WHERE s.course_id = p.course_id AND s.user_id = p.user_id))
		 ORDER BY p.updated_at
		 LIMIT $2`,
		string(model.PurchaseStatusCompleted), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select purchases missing enrollment: %w", err)
	}
	defer rows.Close()

	var res []model.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
