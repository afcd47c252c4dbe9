// Package export renders analytics reports as spreadsheet friendly CSV.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/odyssey-erp/odyssey-retail/internal/analytics"
	"github.com/odyssey-erp/odyssey-retail/internal/calendar"
	"github.com/odyssey-erp/odyssey-retail/internal/money"
)

// bomWriter prefixes output with a UTF-8 byte order mark so spreadsheet
// applications detect the encoding. Close must be called to flush.
func bomWriter(w io.Writer) io.WriteCloser {
	return transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
}

// WriteTimeSeriesCSV emits one row per bucket with revenue comparisons.
func WriteTimeSeriesCSV(w io.Writer, points []analytics.TimeSeriesPoint) error {
	out := bomWriter(w)
	writer := csv.NewWriter(out)

	header := []string{"Period", "Revenue", "Cost", "Profit", "Margin %", "Units", "Sales"}
	for _, h := range calendar.Horizons {
		header = append(header, "Revenue "+string(h)+" %")
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, point := range points {
		record := []string{
			formatPeriod(point.Period),
			money.Format(point.Metrics.Revenue),
			money.Format(point.Metrics.Cost),
			money.Format(point.Metrics.Profit),
			money.Format(point.Metrics.Margin),
			strconv.FormatInt(point.Metrics.Units, 10),
			strconv.FormatInt(point.Metrics.Sales, 10),
		}
		for _, h := range calendar.Horizons {
			record = append(record, formatOptional(money.FormatPtr(point.Changes.Revenue[h].Percent)))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return out.Close()
}

// WriteBreakevenCSV emits the monthly breakeven trend.
func WriteBreakevenCSV(w io.Writer, rows []analytics.TrendRow) error {
	out := bomWriter(w)
	writer := csv.NewWriter(out)
	if err := writer.Write([]string{"Period", "Units", "Revenue", "Cost", "Profit", "Margin Ratio", "Cumulative Units", "Variance", "Met Break Even"}); err != nil {
		return err
	}
	for _, row := range rows {
		variance := ""
		if row.Variance != nil {
			variance = strconv.FormatInt(*row.Variance, 10)
		}
		if err := writer.Write([]string{
			row.Period.Format("2006-01"),
			strconv.FormatInt(row.Units, 10),
			money.Format(row.Revenue),
			money.Format(row.Cost),
			money.Format(row.Profit),
			money.Format(row.MarginRatio),
			strconv.FormatInt(row.CumulativeUnits, 10),
			variance,
			strconv.FormatBool(row.MetBreakEven),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return out.Close()
}

func formatPeriod(t time.Time) string {
	return t.Format(time.RFC3339)
}

func formatOptional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
