package bytes

import "strconv"

var units = [...]string{"B", "KB", "MB", "GB", "TB"}

// FmtMem renders a byte count with its two most significant units, e.g. "3MB 512KB".
func FmtMem(n int64) string {
	if n < 0 {
		return "-" + FmtMem(-n)
	}
	i, rem := 0, int64(0)
	for n >= 1024 && i < len(units)-1 {
		n, rem = n/1024, n%1024
		i++
	}
	if i == 0 {
		return strconv.FormatInt(n, 10) + units[0]
	}
	if i > 1 {
		rem /= 1024
	}
	return strconv.FormatInt(n, 10) + units[i] + " " + strconv.FormatInt(rem, 10) + units[i-1]
}
