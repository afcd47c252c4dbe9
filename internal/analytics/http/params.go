package analytichttp

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/analytics"
	"github.com/odyssey-erp/odyssey-retail/internal/calendar"
	"github.com/odyssey-erp/odyssey-retail/internal/platform/httpx"
)

const dateLayout = "2006-01-02"

type timeSeriesParams struct {
	StartDate string `validate:"required,datetime=2006-01-02"`
	EndDate   string `validate:"required,datetime=2006-01-02"`
	GroupBy   string `validate:"omitempty,granularity"`
	Page      int    `validate:"gte=0"`
	PageSize  int    `validate:"gte=0,lte=500"`
}

type breakevenParams struct {
	ProductID     int64  `validate:"required,gt=0"`
	StartDate     string `validate:"omitempty,datetime=2006-01-02"`
	EndDate       string `validate:"omitempty,datetime=2006-01-02"`
	ExtraUnitCost string `validate:"omitempty,nonnegative_decimal"`
	FixedCost     string `validate:"omitempty,nonnegative_decimal"`
	Ordering      string `validate:"omitempty,ordering"`
	Page          int    `validate:"gte=0"`
	PageSize      int    `validate:"gte=0,lte=500"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("granularity", func(fl validator.FieldLevel) bool {
		_, err := calendar.ParseGranularity(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("ordering", func(fl validator.FieldLevel) bool {
		return analytics.ValidOrdering(fl.Field().String())
	})
	_ = v.RegisterValidation("nonnegative_decimal", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && d.Sign() >= 0
	})
	return v
}

// fieldErrors flattens validator output into a parameter -> tag map.
func fieldErrors(err error) error {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	parts := make([]string, 0, len(vErrs))
	for _, fe := range vErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", toSnake(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(parts, "; "))
}

func toSnake(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", httpx.ErrValidation, name)
	}
	return v, nil
}

func parseDate(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, value, loc)
}

func (h *Handler) parseTimeSeries(r *http.Request) (analytics.TimeSeriesQuery, error) {
	q := r.URL.Query()
	p := timeSeriesParams{
		StartDate: strings.TrimSpace(q.Get("start_date")),
		EndDate:   strings.TrimSpace(q.Get("end_date")),
		GroupBy:   strings.TrimSpace(q.Get("group_by")),
	}
	var err error
	if p.Page, err = queryInt(r, "page"); err != nil {
		return analytics.TimeSeriesQuery{}, err
	}
	if p.PageSize, err = queryInt(r, "page_size"); err != nil {
		return analytics.TimeSeriesQuery{}, err
	}
	if err := h.validator.Struct(p); err != nil {
		return analytics.TimeSeriesQuery{}, fieldErrors(err)
	}

	g := calendar.Month
	if p.GroupBy != "" {
		g, _ = calendar.ParseGranularity(p.GroupBy)
	}
	loc := h.service.Location()
	start, _ := parseDate(p.StartDate, loc)
	end, _ := parseDate(p.EndDate, loc)
	if end.Before(start) {
		return analytics.TimeSeriesQuery{}, fmt.Errorf("%w: end_date must not precede start_date", httpx.ErrValidation)
	}
	if span := int(end.Sub(start).Hours() / 24); span > g.MaxSpanDays() {
		return analytics.TimeSeriesQuery{}, fmt.Errorf("%w: range of %d days exceeds the %d day limit for %s", httpx.ErrValidation, span, g.MaxSpanDays(), g)
	}
	return analytics.TimeSeriesQuery{
		From:        start,
		To:          end,
		Granularity: g,
		Page:        p.Page,
		PageSize:    p.PageSize,
	}, nil
}

func (h *Handler) parseBreakeven(r *http.Request) (analytics.BreakevenQuery, error) {
	q := r.URL.Query()
	p := breakevenParams{
		StartDate:     strings.TrimSpace(q.Get("start_date")),
		EndDate:       strings.TrimSpace(q.Get("end_date")),
		ExtraUnitCost: strings.TrimSpace(q.Get("extra_unit_cost")),
		FixedCost:     strings.TrimSpace(q.Get("fixed_cost")),
		Ordering:      strings.TrimSpace(q.Get("ordering")),
	}
	if raw := strings.TrimSpace(q.Get("product_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return analytics.BreakevenQuery{}, fmt.Errorf("%w: product_id must be an integer", httpx.ErrValidation)
		}
		p.ProductID = id
	}
	var err error
	if p.Page, err = queryInt(r, "page"); err != nil {
		return analytics.BreakevenQuery{}, err
	}
	if p.PageSize, err = queryInt(r, "page_size"); err != nil {
		return analytics.BreakevenQuery{}, err
	}
	if err := h.validator.Struct(p); err != nil {
		return analytics.BreakevenQuery{}, fieldErrors(err)
	}

	out := analytics.BreakevenQuery{
		ProductID: p.ProductID,
		Ordering:  p.Ordering,
		Page:      p.Page,
		PageSize:  p.PageSize,
	}
	loc := h.service.Location()
	if p.StartDate != "" {
		start, _ := parseDate(p.StartDate, loc)
		out.From = &start
	}
	if p.EndDate != "" {
		end, _ := parseDate(p.EndDate, loc)
		out.To = &end
	}
	if out.From != nil && out.To != nil && out.To.Before(*out.From) {
		return analytics.BreakevenQuery{}, fmt.Errorf("%w: end_date must not precede start_date", httpx.ErrValidation)
	}
	out.ExtraUnitCost, _ = decimal.NewFromString(orZero(p.ExtraUnitCost))
	out.FixedCost, _ = decimal.NewFromString(orZero(p.FixedCost))
	return out, nil
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
