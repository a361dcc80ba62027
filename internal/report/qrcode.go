package report

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 400

// PickupCodePNG renders the pickup code as a scannable QR image. The code is
// also shown to the volunteer as plain text; the QR is for the donor's
// scanner at handover.
func PickupCodePNG(code string) ([]byte, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pickup code QR: %w", err)
	}
	return png, nil
}
