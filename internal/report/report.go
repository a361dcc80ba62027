package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/ecorescue/foodshare/internal/storage"
)

// Stats partitions a donation list into its three lifecycle buckets. Every
// donation lands in exactly one bucket, so Available+Reserved+Completed
// always equals Total.
type Stats struct {
	Available int `json:"available"`
	Reserved  int `json:"reserved"`
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// SuccessPercent is the share of donations that made it all the way to
// pickup. Zero when there is nothing to count.
func (s Stats) SuccessPercent() int {
	if s.Total == 0 {
		return 0
	}
	return s.Completed * 100 / s.Total
}

// ComputeStats is a pure function over the full donation history.
func ComputeStats(donations []storage.Donation) Stats {
	var stats Stats
	for _, d := range donations {
		switch d.Status() {
		case storage.StatusCompleted:
			stats.Completed++
		case storage.StatusReserved:
			stats.Reserved++
		default:
			stats.Available++
		}
	}
	stats.Total = len(donations)
	return stats
}

// RenderPDF builds the downloadable impact report: the three counts, the
// success percentage and a proportion bar.
func RenderPDF(stats Stats, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.Cell(0, 12, "FoodShare Impact Report")
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, "Generated "+generatedAt.UTC().Format(time.RFC1123))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	rows := []struct {
		label string
		value int
	}{
		{"Total donations", stats.Total},
		{"Available", stats.Available},
		{"Reserved", stats.Reserved},
		{"Completed (rescued)", stats.Completed},
	}
	for _, row := range rows {
		pdf.CellFormat(80, 8, row.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 8, fmt.Sprintf("%d", row.value), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Rescue success rate: %d%%", stats.SuccessPercent()))
	pdf.Ln(10)

	// Proportion bar: green for completed, amber for reserved, grey for
	// still-available offers.
	const barWidth, barHeight = 160.0, 10.0
	x, y := pdf.GetX(), pdf.GetY()
	if stats.Total > 0 {
		completedW := barWidth * float64(stats.Completed) / float64(stats.Total)
		reservedW := barWidth * float64(stats.Reserved) / float64(stats.Total)

		pdf.SetFillColor(76, 175, 80)
		pdf.Rect(x, y, completedW, barHeight, "F")
		pdf.SetFillColor(255, 193, 7)
		pdf.Rect(x+completedW, y, reservedW, barHeight, "F")
		pdf.SetFillColor(189, 189, 189)
		pdf.Rect(x+completedW+reservedW, y, barWidth-completedW-reservedW, barHeight, "F")
	} else {
		pdf.SetFillColor(189, 189, 189)
		pdf.Rect(x, y, barWidth, barHeight, "F")
	}
	pdf.SetDrawColor(0, 0, 0)
	pdf.Rect(x, y, barWidth, barHeight, "D")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render report PDF: %w", err)
	}
	return buf.Bytes(), nil
}
