package core

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count with binary prefixes, e.g. 1536 -> "1.5 KB".
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}

	exp := 0
	div := int64(1)
	for exp < len(sizeUnits)-1 && n >= div*1024 {
		div *= 1024
		exp++
	}

	return trimFloat(float64(n)/float64(div)) + " " + sizeUnits[exp]
}
