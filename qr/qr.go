// Package qr renders product tracking QR codes as base64 PNG data URLs.
package qr

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const pngSize = 256

type payload struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Owner     string `json:"owner"`
	VerifyURL string `json:"verifyUrl"`
}

// DataURL encodes the product's tracking payload into a QR code and returns
// it as a data:image/png;base64 URL, ready to embed in a page or response.
func DataURL(productID, name, ownerWallet, verifyBaseURL string) (string, error) {
	data, err := json.Marshal(payload{
		ProductID: productID,
		Name:      name,
		Owner:     ownerWallet,
		VerifyURL: fmt.Sprintf("%s/%s", verifyBaseURL, productID),
	})
	if err != nil {
		return "", fmt.Errorf("marshaling QR payload: %w", err)
	}

	png, err := qrcode.Encode(string(data), qrcode.Medium, pngSize)
	if err != nil {
		return "", fmt.Errorf("encoding QR code: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
