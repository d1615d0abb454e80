package validation

import (
	"strings"
	"unicode"

	"github.com/fmuoria/recruit-crm/internal/models"
)

// ReviewDuplicates flags every row whose email or phone value appears more
// than once in the batch. The flags are warnings; they do not block insertion.
func ReviewDuplicates(rows []models.ValidatedRow) {
	emails := countValues(rows, "emails", emailKey)
	phones := countValues(rows, "phones", phoneKey)

	for i := range rows {
		if k := emailKey(rows[i].Data["emails"]); k != "" && emails[k] > 1 {
			rows[i].Warnings = append(rows[i].Warnings, WarnDuplicateEmail)
		}
		if k := phoneKey(rows[i].Data["phones"]); k != "" && phones[k] > 1 {
			rows[i].Warnings = append(rows[i].Warnings, WarnDuplicatePhone)
		}
	}
}

func countValues(rows []models.ValidatedRow, field string, key func(string) string) map[string]int {
	counts := make(map[string]int)
	for _, r := range rows {
		if k := key(r.Data[field]); k != "" {
			counts[k]++
		}
	}
	return counts
}

func emailKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// phoneKey compares on digits only so "+91 98765-43210" and "919876543210" collide
func phoneKey(v string) string {
	var b strings.Builder
	for _, r := range v {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
