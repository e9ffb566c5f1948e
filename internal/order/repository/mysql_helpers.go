package repository

import (
	"database/sql"
	"sort"
	"strings"
	"time"

	"mealrun/internal/domain"
)

// dbTime matches the DATETIME(6) precision so stored values compare equal.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: dbTime(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func inClause(ids []string) (string, []interface{}) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ", "), args
}

// deliveriesWhere flattens orders into the shop orders keep selects.
func deliveriesWhere(orders []*domain.Order, keep func(o *domain.Order, so *domain.ShopOrder) bool) []domain.Delivery {
	var out []domain.Delivery
	for _, o := range orders {
		for i := range o.ShopOrders {
			so := &o.ShopOrders[i]
			if keep(o, so) {
				out = append(out, domain.DeliveryFrom(o, so))
			}
		}
	}
	return out
}

func sortByDeliveredAt(ds []domain.Delivery) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i].ShopOrder.DeliveredAt, ds[j].ShopOrder.DeliveredAt
		if a == nil || b == nil {
			return b != nil
		}
		return a.Before(*b)
	})
}
