package render

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/mkamau/receiptgen/internal/billing"
	"github.com/mkamau/receiptgen/internal/domain"
)

// ReceiptView is the deterministic input for receipt rendering.
type ReceiptView struct {
	Business  domain.BusinessProfile
	Record    domain.TransactionRecord
	Items     []domain.LineItem
	Breakdown billing.Breakdown
}

// Page geometry for the 80mm thermal-printer width class.
const (
	pageWidth    = 80.0
	pageHeight   = 200.0
	marginSide   = 4.0
	marginTop    = 5.0
	marginBottom = 5.0
	logoWidth    = 20.0
	qrWidth      = 25.0
	rowLabelW    = 40.0
	itemDescW    = 45.0
	ruleText     = "--------------------------------------"
)

// Truncation bounds carried over from the narrow fixed layout.
const (
	maxBusinessName = 25
	maxCustomerName = 20
	maxItemDesc     = 22
)

const footerBrand = "Powered by ReceiptGen"

const footerDisclaimer = "System generated for internal records.\nNot a substitute for eTIMS invoice."

type elementKind int

const (
	kindText elementKind = iota
	kindRow
	kindRule
	kindSpace
	kindImage
)

// element is one entry in a receipt layout. A layout is a flat list of
// elements consumed by a document writer; the writer knows nothing about
// receipts and the layout knows nothing about PDF.
type element struct {
	kind elementKind

	// kindText
	text  string
	align string

	// kindRow: left label, right-aligned value
	left  string
	right string
	leftW float64

	// shared typography
	style  string // "", "B", "I"
	size   float64
	height float64

	// kindSpace
	space float64

	// kindImage: registered image name, encoded bytes, type and display width
	imageName string
	imageData []byte
	imageType string // "PNG" or "JPG"
	imageW    float64
}

func textLine(text string, style string, size, height float64, align string) element {
	return element{kind: kindText, text: text, style: style, size: size, height: height, align: align}
}

func row(left, right string, bold bool, size, height, leftW float64) element {
	style := ""
	if bold {
		style = "B"
	}
	return element{kind: kindRow, left: left, right: right, style: style, size: size, height: height, leftW: leftW}
}

func rule() element {
	return element{kind: kindRule, size: 10, height: 4}
}

func space(h float64) element {
	return element{kind: kindSpace, space: h}
}

// buildLayout produces the full receipt layout from the view. logo is an
// optional pre-loaded image (nil omits the block); qr is the PNG-encoded
// machine-readable payload.
func buildLayout(view ReceiptView, logo []byte, logoType string, qr []byte) []element {
	biz := view.Business
	rec := view.Record
	bd := view.Breakdown

	var els []element

	if logo != nil {
		els = append(els, element{
			kind:      kindImage,
			imageName: "logo-" + rec.Code,
			imageData: logo,
			imageType: logoType,
			imageW:    logoWidth,
		})
	}

	// Header block.
	els = append(els,
		textLine(truncate(strings.ToUpper(biz.Name), maxBusinessName), "B", 11, 5, "C"),
		textLine("NAIROBI, KENYA", "", 9, 4, "C"),
		textLine("TEL: "+biz.Phone, "", 9, 4, "C"),
	)
	if biz.TaxPIN != "" {
		els = append(els, textLine("PIN: "+strings.ToUpper(biz.TaxPIN), "", 9, 4, "C"))
	}

	title := "*** PAYMENT RECEIPT ***"
	if bd.VATEnabled {
		title = "*** VAT RECEIPT ***"
	}
	els = append(els, space(2), textLine(title, "B", 10, 5, "C"))

	// Metadata block.
	dateStr := rec.TransactionDate.Format("2006-01-02 15:04:05")
	els = append(els,
		rule(),
		textLine("Date: "+dateStr, "", 9, 4, "L"),
		textLine("Ref No: "+rec.Code, "", 9, 4, "L"),
		textLine("Customer: "+truncate(titleCase(rec.CustomerName), maxCustomerName), "", 9, 4, "L"),
		rule(),
	)

	// Itemized list.
	els = append(els, row("ITEM", "TOTAL", true, 9, 4, itemDescW))
	for _, it := range view.Items {
		els = append(els, row(
			truncate(titleCase(it.Description), maxItemDesc),
			formatAmount(it.Cost),
			false, 9, 4, itemDescW,
		))
	}
	els = append(els, rule())

	// Tax breakdown, only in VAT mode.
	if bd.VATEnabled {
		els = append(els,
			row("TOTAL NET:", formatAmount(bd.Net), false, 9, 4, rowLabelW),
			row("VAT (16%):", formatAmount(bd.VAT), false, 9, 4, rowLabelW),
			space(1),
		)
	}

	els = append(els, row("TOTAL BILL:", formatAmount(bd.BillTotal), true, 12, 6, rowLabelW))

	// Payment block.
	els = append(els,
		space(1),
		rule(),
		row("M-PESA PAID:", formatAmount(bd.Paid), false, 9, 4, rowLabelW),
	)
	if bd.Change.Sign() > 0 {
		els = append(els, row("CHANGE:", formatAmount(bd.Change), false, 9, 4, rowLabelW))
	} else if bd.BalanceDue.Sign() > 0 {
		els = append(els, row("BALANCE DUE:", formatAmount(bd.BalanceDue), true, 9, 4, rowLabelW))
	}
	els = append(els, rule())

	// QR and footer.
	els = append(els,
		space(2),
		element{
			kind:      kindImage,
			imageName: "qr-" + rec.Code,
			imageData: qr,
			imageType: "PNG",
			imageW:    qrWidth,
		},
		space(4),
		textLine(footerBrand, "", 8, 4, "C"),
		space(2),
		textLine(footerDisclaimer, "I", 6, 3, "C"),
	)

	return els
}

// QRPayload is the machine-readable summary encoded on every receipt.
func QRPayload(view ReceiptView) string {
	return fmt.Sprintf("REF:%s\nBILL:%s\nDATE:%s",
		view.Record.Code,
		view.Breakdown.BillTotal.StringFixed(2),
		view.Record.TransactionDate.Format("2006-01-02 15:04:05"),
	)
}

// formatAmount renders money rounded to two places with thousands
// separators, e.g. "1,500.00". Rounding happens here, at presentation
// time only.
func formatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	parts := strings.SplitN(s, ".", 2)
	intPart := parts[0]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := b.String() + "." + parts[1]
	if neg {
		out = "-" + out
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
