package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func saleLine(saleID int64, soldAt time.Time, qty int64, price string) SaleLine {
	return SaleLine{
		SaleID:    saleID,
		SoldAt:    soldAt,
		Status:    SaleCompleted,
		ProductID: 1,
		Quantity:  qty,
		UnitPrice: dec(price),
		UnitCost:  dec("10"),
	}
}

// fixtureLines is one product with cost 10 sold four times across three months.
func fixtureLines() []SaleLine {
	return []SaleLine{
		saleLine(1, at(2023, time.January, 10), 4, "20"),
		saleLine(2, at(2023, time.December, 15), 5, "20"),
		saleLine(3, at(2024, time.January, 10), 10, "25"),
		saleLine(4, at(2024, time.February, 1), 2, "30"),
	}
}

func fixtureProduct() Product {
	return Product{ID: 1, Name: "Widget", CostPrice: dec("10"), SellingPrice: dec("25")}
}

type mockRepo struct {
	mu        sync.Mutex
	lines     []SaleLine
	product   Product
	lineCalls int
	lineErr   error
	filters   []LineFilter
}

func newMockRepo() *mockRepo {
	return &mockRepo{lines: fixtureLines(), product: fixtureProduct()}
}

func (m *mockRepo) CompletedSaleLines(_ context.Context, filter LineFilter) ([]SaleLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lineCalls++
	m.filters = append(m.filters, filter)
	if m.lineErr != nil {
		return nil, m.lineErr
	}
	var out []SaleLine
	for _, l := range m.lines {
		if l.Status != SaleCompleted {
			continue
		}
		if filter.From != nil && l.SoldAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && l.SoldAt.After(*filter.To) {
			continue
		}
		if filter.ProductID != nil && l.ProductID != *filter.ProductID {
			continue
		}
		l.UnitCost = m.product.CostPrice
		out = append(out, l)
	}
	return out, nil
}

func (m *mockRepo) Product(_ context.Context, id int64) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != m.product.ID {
		return Product{}, ErrProductNotFound
	}
	return m.product, nil
}

func (m *mockRepo) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lineCalls
}

func (m *mockRepo) setCost(cost string) {
	m.mu.Lock()
	m.product.CostPrice = dec(cost)
	m.mu.Unlock()
}

func (m *mockRepo) addLine(l SaleLine) {
	m.mu.Lock()
	m.lines = append(m.lines, l)
	m.mu.Unlock()
}
