package headers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = `You read scanned tables. For every cell you are given, name the row header ` +
	`and the column header that label it in the image. Answer with a JSON object keyed by cellId ` +
	`whose values are {"row": string, "col": string}. Use an empty string when a cell has no header.`

// userPrompt lists the cells as JSON after a short instruction.
func userPrompt(cells []Cell) (string, error) {
	data, err := json.Marshal(cells)
	if err != nil {
		return "", fmt.Errorf("failed to encode cells: %w", err)
	}
	return "Cells:\n" + string(data), nil
}

// isImage reports whether the MIME type can be attached as an image.
func isImage(mime string) bool {
	switch strings.ToLower(mime) {
	case "image/png", "image/jpeg", "image/jpg", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

// imageMIME maps the non-standard image/jpg to image/jpeg.
func imageMIME(mime string) string {
	if strings.EqualFold(mime, "image/jpg") {
		return "image/jpeg"
	}
	return strings.ToLower(mime)
}

func dataURI(mime string, data []byte) string {
	return "data:" + imageMIME(mime) + ";base64," + base64.StdEncoding.EncodeToString(data)
}
