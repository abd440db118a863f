package service

import (
	"fmt"
	"strconv"
	"strings"
)

func f2(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func mustInt(s string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return v
}

// parseConfirmData splits callback data of the form VERB::token.
func parseConfirmData(data string) (verb, token string) {
	verb, token, ok := strings.Cut(data, "::")
	if !ok {
		return "", ""
	}
	return verb, token
}
