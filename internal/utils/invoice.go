package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateReceiptNumber returns RCP-YYYYMMDD-HHMMSS-mmm-RRRR.
func GenerateReceiptNumber() string {
	now := time.Now().UTC()

	datePart := now.Format("20060102-150405")
	millis := now.Nanosecond() / int(time.Millisecond)

	// 4-digit cryptographic random
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		// fallback: time-based entropy
		n = big.NewInt(now.UnixNano() % 10000)
	}

	return fmt.Sprintf(
		"RCP-%s-%03d-%04d",
		datePart,
		millis,
		n.Int64(),
	)
}

// GenerateRequestID returns REQ-<unix millis>-<9 base36 chars>.
func GenerateRequestID() string {
	now := time.Now()

	var sb strings.Builder
	for i := 0; i < 9; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(base36))))
		if err != nil {
			n = big.NewInt((now.UnixNano() >> uint(i)) % int64(len(base36)))
		}
		sb.WriteByte(base36[n.Int64()])
	}

	return fmt.Sprintf("REQ-%d-%s", now.UnixMilli(), sb.String())
}
