package render

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// writePDF walks a layout and emits it onto a narrow receipt page. It is
// the only place that talks to the PDF engine; everything above it deals in
// layout elements.
func writePDF(els []element) ([]byte, error) {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	pdf.SetMargins(marginSide, marginTop, marginSide)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.AddPage()

	for _, el := range els {
		switch el.kind {
		case kindText:
			pdf.SetFont("Courier", el.style, el.size)
			pdf.MultiCell(0, el.height, el.text, "", el.align, false)

		case kindRow:
			pdf.SetFont("Courier", el.style, el.size)
			pdf.CellFormat(el.leftW, el.height, el.left, "", 0, "L", false, 0, "")
			pdf.CellFormat(0, el.height, el.right, "", 1, "R", false, 0, "")

		case kindRule:
			pdf.SetFont("Courier", "", el.size)
			pdf.CellFormat(0, el.height, ruleText, "", 1, "C", false, 0, "")

		case kindSpace:
			pdf.Ln(el.space)

		case kindImage:
			opts := gofpdf.ImageOptions{ImageType: el.imageType}
			pdf.RegisterImageOptionsReader(el.imageName, opts, bytes.NewReader(el.imageData))
			x := (pageWidth - el.imageW) / 2
			y := pdf.GetY()
			pdf.ImageOptions(el.imageName, x, y, el.imageW, 0, false, opts, 0, "")
			pdf.SetY(y + el.imageW)
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("writePDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writePDF: output: %w", err)
	}
	return buf.Bytes(), nil
}
