package xlsxGenerator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/papertrade/brokersim/internal/model"
	"github.com/papertrade/brokersim/utils"
)

const sheetName = "Portfolio"

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

// Generate renders the current dashboard into a one-sheet workbook: valuation
// rows per position plus cash and equity totals.
func (g *XLSXGenerator) Generate(ctx context.Context, dashboard model.Dashboard) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err := g.fillSheet(f, dashboard); err != nil {
		slog.Error("got error while filling sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) fillSheet(f *excelize.File, dashboard model.Dashboard) error {
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#cfe2f3"},
		},
	})
	if err != nil {
		return err
	}

	headers := []string{"ticker", "quantity", "avg price", "last price", "market value", "pnl"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		_ = f.SetCellStr(sheetName, cell, header)
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for i, row := range dashboard.Positions {
		rowNum := i + 2
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), row.Ticker)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNum), row.Quantity.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", rowNum), row.AvgPrice.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", rowNum), row.LastPrice.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", rowNum), row.MarketValue.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", rowNum), row.PnL.InexactFloat64())
	}

	totalsRow := len(dashboard.Positions) + 3
	_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", totalsRow), "cash")
	_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", totalsRow), dashboard.Cash.InexactFloat64())
	_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", totalsRow+1), "market value")
	_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", totalsRow+1), dashboard.TotalMarketValue.InexactFloat64())
	_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", totalsRow+2), "total equity")
	_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", totalsRow+2), dashboard.TotalEquity.InexactFloat64())

	return nil
}
