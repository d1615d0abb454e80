package mapping

import "strings"

// Guess is a heuristic verdict
type Guess struct {
	Field  string
	Score  float64
	Reason string
}

type heuristicRule struct {
	match func(tok string) bool
	guess func(tok string) Guess
}

func containsAny(tok string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(tok, s) {
			return true
		}
	}
	return false
}

func fixed(field string, score float64, reason string) func(string) Guess {
	return func(string) Guess { return Guess{Field: field, Score: score, Reason: reason} }
}

// Compound compensation rules come first so "currentctclpa" never lands on a
// generic text column.
var heuristicRules = []heuristicRule{
	{
		match: func(tok string) bool { return strings.Contains(tok, "ctc") && strings.Contains(tok, "lpa") },
		guess: func(tok string) Guess {
			if containsAny(tok, "expect", "exp") {
				return Guess{"expected_ctc_lpa", 0.90, "Heuristic: expected + ctc lpa"}
			}
			return Guess{"current_ctc_lpa", 0.88, "Heuristic: ctc lpa"}
		},
	},
	{
		match: func(tok string) bool {
			return strings.Contains(tok, "ctc") && containsAny(tok, "current", "present", "now", "yr", "annual", "yearly")
		},
		guess: fixed("ctc_current", 0.86, "Heuristic: ctc current-ish"),
	},
	{
		match: func(tok string) bool { return containsAny(tok, "teamsize", "companysize", "employeesize", "headcount") },
		guess: fixed("employee_size", 0.85, "Heuristic: size/headcount token"),
	},
	{
		match: func(tok string) bool { return strings.Contains(tok, "email") },
		guess: fixed("emails", 0.92, "Heuristic: token 'email'"),
	},
	{
		match: func(tok string) bool { return containsAny(tok, "phone", "mobile", "phno", "tele") },
		guess: fixed("phones", 0.90, "Heuristic: phone-like token"),
	},
	{
		match: func(tok string) bool { return containsAny(tok, "org", "company", "employer") },
		guess: fixed("current_company", 0.88, "Heuristic: company/employer token"),
	},
	{
		match: func(tok string) bool { return containsAny(tok, "edu", "degree", "qualification", "almat") },
		guess: fixed("education", 0.85, "Heuristic: education token"),
	},
	{
		match: func(tok string) bool { return containsAny(tok, "comment", "note", "remark") },
		guess: fixed("comments", 0.90, "Heuristic: notes/comments token"),
	},
}

// HeuristicGuess applies the substring rules top to bottom; the first hit wins
func HeuristicGuess(token string) Guess {
	if token == "" {
		return Guess{Reason: "No heuristic"}
	}
	for _, rule := range heuristicRules {
		if rule.match(token) {
			return rule.guess(token)
		}
	}
	return Guess{Reason: "No heuristic"}
}
