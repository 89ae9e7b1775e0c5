package infra

// pdf.go renders thermal-style receipts with go-pdf/fpdf. A receipt is built
// from an already settled Order or TableSession; nothing here recomputes money.

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vendapos/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

type ReceiptLine struct {
	Name     string
	Amount   string // "x2" or "300g"
	Subtotal decimal.Decimal
}

// Receipt is the printable view of a settled sale.
type Receipt struct {
	Title       string
	Reference   string
	IssuedAt    time.Time
	Customer    string
	Lines       []ReceiptLine
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Cashback    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
	Payments    []model.Tender
	Change      decimal.Decimal
}

func receiptLines(items []model.SaleItem) []ReceiptLine {
	lines := make([]ReceiptLine, 0, len(items))
	for _, it := range items {
		amount := fmt.Sprintf("x%d", it.Quantity)
		if it.PricingMode == model.PricingWeight {
			amount = it.WeightGrams.StringFixed(0) + "g"
		}
		lines = append(lines, ReceiptLine{Name: it.ProductName, Amount: amount, Subtotal: it.Subtotal})
	}
	return lines
}

func ReceiptFromOrder(o *model.Order) Receipt {
	return Receipt{
		Title:       "Pedido",
		Reference:   o.ID.String()[:8],
		IssuedAt:    o.CreatedAt,
		Customer:    o.CustomerName,
		Lines:       receiptLines(o.Items),
		Subtotal:    o.Subtotal,
		Discount:    o.DiscountAmount,
		Cashback:    o.CashbackApplied,
		DeliveryFee: o.DeliveryFee,
		Total:       o.TotalPrice,
		Payments:    o.Payments,
		Change:      o.ChangeAmount,
	}
}

func ReceiptFromSession(s *model.TableSession) Receipt {
	issued := s.UpdatedAt
	if s.ClosedAt != nil {
		issued = *s.ClosedAt
	}
	return Receipt{
		Title:     fmt.Sprintf("Mesa %d", s.TableNumber),
		Reference: s.ID.String()[:8],
		IssuedAt:  issued,
		Customer:  s.CustomerName,
		Lines:     receiptLines(s.Items),
		Subtotal:  s.Subtotal,
		Discount:  s.DiscountAmount,
		Cashback:  s.CashbackApplied,
		Total:     s.TotalAmount,
		Payments:  s.Payments,
		Change:    s.ChangeAmount,
	}
}

var methodLabels = map[model.TenderMethod]string{
	model.TenderCash:    "Dinheiro",
	model.TenderPix:     "Pix",
	model.TenderCredit:  "Crédito",
	model.TenderDebit:   "Débito",
	model.TenderVoucher: "Vale",
}

// GenerateReceiptPDF writes r to storagePath/receipt_{reference}.pdf and
// returns the file path.
func GenerateReceiptPDF(r Receipt, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("receipt_%s.pdf", r.Reference))

	// 80mm thermal roll; height grows with the item count.
	height := 90 + float64(len(r.Lines)+len(r.Payments))*5
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 80, Ht: height},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 7, tr(r.Title), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, "#"+r.Reference+"  "+r.IssuedAt.Format("02/01/2006 15:04"), "", 1, "C", false, 0, "")
	if r.Customer != "" {
		pdf.CellFormat(contentW, 4, tr(r.Customer), "", 1, "C", false, 0, "")
	}
	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Items ─────────────────────────────────────────────────────────────────
	col1 := contentW * 0.52
	col2 := contentW * 0.18
	col3 := contentW * 0.30

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Produto", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Qtd", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 5, "Subtotal", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, l := range r.Lines {
		name := []rune(l.Name)
		if len(name) > 24 {
			name = append(name[:23], '.')
		}
		pdf.CellFormat(col1, 5, tr(string(name)), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, l.Amount, "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 5, "R$ "+l.Subtotal.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Totals ────────────────────────────────────────────────────────────────
	row := func(label string, v decimal.Decimal, neg bool) {
		if v.IsZero() {
			return
		}
		sign := ""
		if neg {
			sign = "-"
		}
		pdf.CellFormat(col1+col2, 5, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, sign+"R$ "+v.StringFixed(2), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "", 7)
	row("Subtotal:", r.Subtotal, false)
	row("Desconto:", r.Discount, true)
	row("Cashback:", r.Cashback, true)
	row("Taxa de entrega:", r.DeliveryFee, false)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col1+col2, 6, "TOTAL:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 6, "R$ "+r.Total.StringFixed(2), "", 1, "R", false, 0, "")

	// ── Payments ──────────────────────────────────────────────────────────────
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 7)
	for _, p := range r.Payments {
		label, ok := methodLabels[p.Method]
		if !ok {
			label = string(p.Method)
		}
		pdf.CellFormat(col1+col2, 4, tr(label+":"), "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 4, "R$ "+p.Amount.StringFixed(2), "", 1, "R", false, 0, "")
	}
	row("Troco:", r.Change, false)

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, tr("Obrigado pela preferência!"), "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}
