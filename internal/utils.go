package internal

import (
	"fmt"
	"os"
	"regexp"
)

func StringContains(s []string, k string) bool {
	for _, v := range s {
		if v == k {
			return true
		}
	}
	return false
}

var uriPassword = regexp.MustCompile(`(://[^:/@]+):[^@/]+@`)
var barePassword = regexp.MustCompile(`^([^:/@]+):[^@/]+@`)

// RemovePassword masks the password in a connection URI so it can be logged.
func RemovePassword(uri string) string {
	masked := uriPassword.ReplaceAllString(uri, "$1:****@")
	return barePassword.ReplaceAllString(masked, "$1:****@")
}

// FormatBytes renders a byte count in IEC units, keeping the exact count.
func FormatBytes(n uint64) string {
	if n < 1024 {
		return fmt.Sprintf("%d Bytes", n)
	}
	units := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	z := 0
	v := float64(n) / 1024
	for v >= 1024 && z < len(units)-1 {
		z++
		v /= 1024
	}
	return fmt.Sprintf("%.2f %s (%d Bytes)", v, units[z], n)
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
