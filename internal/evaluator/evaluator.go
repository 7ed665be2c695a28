// Package evaluator scores a produced settlement list against an expected one
// across seven weighted metrics and maps the result to a letter grade.
package evaluator

import (
	"fmt"
	"math"
	"strings"

	"github.com/tallybot/aicore/internal/models"
)

// similarityThreshold is the minimum combined place/item similarity for an
// actual item to count as matched to an expected one.
const similarityThreshold = 0.7

// passThreshold is the overall score at or above which the evaluation passes.
const passThreshold = 0.7

var metricWeights = map[string]float64{
	"item_count":              0.15,
	"place_item_similarity":   0.05,
	"amount_accuracy":         0.36,
	"participant_accuracy":    0.26,
	"hallucination_detection": 0.10,
	"data_completeness":       0.05,
	"consistency_check":       0.03,
}

// Evaluate scores actual settlement records against expected ones. The
// overall score is the weighted sum of the per-metric scores; issues are
// collected only from metrics scoring below 0.7.
func Evaluate(actual, expected []models.SettlementRecord) models.EvaluationResult {
	metrics := map[string]models.MetricResult{
		"item_count":              itemCount(actual, expected),
		"place_item_similarity":   placeItemSimilarity(actual, expected),
		"amount_accuracy":         amountAccuracy(actual, expected),
		"participant_accuracy":    participantAccuracy(actual, expected),
		"hallucination_detection": detectHallucinations(actual, expected),
		"data_completeness":       dataCompleteness(actual),
		"consistency_check":       internalConsistency(actual),
	}

	var score float64
	for name, weight := range metricWeights {
		score += metrics[name].Score * weight
	}

	var issues []string
	for _, name := range []string{
		"item_count", "place_item_similarity", "amount_accuracy",
		"participant_accuracy", "hallucination_detection",
		"data_completeness", "consistency_check",
	} {
		if m := metrics[name]; m.Score < 0.7 {
			issues = append(issues, m.Issues...)
		}
	}

	return models.EvaluationResult{
		Score:   score,
		Grade:   gradeFor(score),
		Metrics: metrics,
		Issues:  issues,
		Passed:  score >= passThreshold,
	}
}

func itemCount(actual, expected []models.SettlementRecord) models.MetricResult {
	var score float64
	if len(expected) == 0 {
		if len(actual) == 0 {
			score = 1
		}
	} else {
		diff := math.Abs(float64(len(actual)-len(expected))) / float64(len(expected))
		score = math.Max(0, 1-diff)
	}

	var issues []string
	if len(actual) != len(expected) {
		issues = append(issues, fmt.Sprintf("항목 수 불일치: 실제 %d개, 예상 %d개", len(actual), len(expected)))
	}
	return models.MetricResult{Score: score, Issues: issues}
}

func placeItemSimilarity(actual, expected []models.SettlementRecord) models.MetricResult {
	if len(expected) == 0 {
		return models.MetricResult{Score: 1}
	}

	var totalSim float64
	var unmatched int
	for _, a := range actual {
		var best float64
		for _, e := range expected {
			placeSim := textSimilarity(strings.TrimSpace(a.Place), strings.TrimSpace(e.Place))
			itemSim := textSimilarity(strings.TrimSpace(a.Item), strings.TrimSpace(e.Item))
			if combined := placeSim*0.3 + itemSim*0.7; combined > best {
				best = combined
			}
		}
		if best >= similarityThreshold {
			totalSim += best
		} else {
			unmatched++
		}
	}

	var score float64
	if len(actual) > 0 {
		score = totalSim / float64(len(actual))
	}

	var issues []string
	if unmatched > 0 {
		issues = append(issues, fmt.Sprintf("유사성이 낮은 항목 %d개 발견", unmatched))
	}
	return models.MetricResult{Score: score, Issues: issues}
}

func amountAccuracy(actual, expected []models.SettlementRecord) models.MetricResult {
	if len(expected) == 0 {
		return models.MetricResult{Score: 1}
	}

	var actualTotal, expectedTotal int64
	for _, a := range actual {
		actualTotal += a.Amount
	}
	for _, e := range expected {
		expectedTotal += e.Amount
	}

	var score float64
	if expectedTotal > 0 {
		diff := math.Abs(float64(actualTotal-expectedTotal)) / float64(expectedTotal)
		score = 1 - math.Min(1, diff)
	} else if actualTotal == 0 {
		score = 1
	}

	var issues []string
	if score < 0.95 {
		issues = append(issues, fmt.Sprintf("총 금액 오차: 실제 %d원, 예상 %d원", actualTotal, expectedTotal))
	}
	return models.MetricResult{Score: score, Issues: issues}
}

func participantAccuracy(actual, expected []models.SettlementRecord) models.MetricResult {
	if len(expected) == 0 {
		return models.MetricResult{Score: 1}
	}

	actualPayers := make(map[string]bool, len(actual))
	for _, a := range actual {
		actualPayers[a.Payer] = true
	}
	expectedPayers := make(map[string]bool, len(expected))
	for _, e := range expected {
		expectedPayers[e.Payer] = true
	}

	payerAccuracy := 1.0
	if len(expectedPayers) > 0 {
		var overlap int
		for p := range expectedPayers {
			if actualPayers[p] {
				overlap++
			}
		}
		payerAccuracy = float64(overlap) / float64(len(expectedPayers))
	}

	// Per-item participant-count accuracy against the closest expected count.
	countAccuracy := 1.0
	if len(actual) > 0 {
		var sum float64
		for _, a := range actual {
			n := len(a.Participants)
			bestExpected := 0
			for _, e := range expected {
				if abs(n-len(e.Participants)) < abs(n-bestExpected) {
					bestExpected = len(e.Participants)
				}
			}
			if bestExpected > 0 {
				sum += 1 - math.Abs(float64(n-bestExpected))/float64(bestExpected)
			} else if n == 0 {
				sum += 1
			}
		}
		countAccuracy = sum / float64(len(actual))
	}

	score := payerAccuracy*0.6 + countAccuracy*0.4

	var issues []string
	if payerAccuracy < 0.8 {
		issues = append(issues, fmt.Sprintf("결제자 식별 정확도 낮음: %.0f%%", payerAccuracy*100))
	}
	if countAccuracy < 0.8 {
		issues = append(issues, fmt.Sprintf("참여자 수 정확도 낮음: %.0f%%", countAccuracy*100))
	}
	return models.MetricResult{Score: score, Issues: issues}
}

func detectHallucinations(actual, expected []models.SettlementRecord) models.MetricResult {
	if len(expected) == 0 {
		return models.MetricResult{Score: 1}
	}

	var expectedPlaces, expectedItems []string
	var expectedAmounts []int64
	expectedPayers := make(map[string]bool, len(expected))
	for _, e := range expected {
		if e.Place != "" {
			expectedPlaces = append(expectedPlaces, strings.ToLower(strings.TrimSpace(e.Place)))
		}
		if e.Item != "" {
			expectedItems = append(expectedItems, strings.ToLower(strings.TrimSpace(e.Item)))
		}
		if e.Amount != 0 {
			expectedAmounts = append(expectedAmounts, e.Amount)
		}
		if e.Payer != "" {
			expectedPayers[e.Payer] = true
		}
	}

	var flagged int
	for _, a := range actual {
		var suspicious bool

		if place := strings.ToLower(strings.TrimSpace(a.Place)); place != "" && !anySimilar(place, expectedPlaces) {
			suspicious = true
		}
		if item := strings.ToLower(strings.TrimSpace(a.Item)); item != "" && !anySimilar(item, expectedItems) {
			suspicious = true
		}
		if a.Amount > 0 && !amountPlausible(a.Amount, expectedAmounts) {
			suspicious = true
		}
		if a.Payer != "" && !expectedPayers[a.Payer] {
			suspicious = true
		}

		if suspicious {
			flagged++
		}
	}

	var ratio float64
	if len(actual) > 0 {
		ratio = float64(flagged) / float64(len(actual))
	}
	score := math.Max(0, 1-ratio)

	var issues []string
	if flagged > 0 {
		issues = append(issues, fmt.Sprintf("할루시네이션 %d개 항목에서 발견", flagged))
	}
	return models.MetricResult{Score: score, Issues: issues}
}

func dataCompleteness(actual []models.SettlementRecord) models.MetricResult {
	if len(actual) == 0 {
		return models.MetricResult{Score: 0, Issues: []string{"추출된 항목이 없음"}}
	}

	const requiredFields = 4 // item, amount, payer, participants

	var sum float64
	var incomplete int
	for _, a := range actual {
		var present float64
		missing := false
		if strings.TrimSpace(a.Item) != "" {
			present++
		} else {
			missing = true
		}
		if a.Amount != 0 {
			present++
		} else {
			missing = true
		}
		if strings.TrimSpace(a.Payer) != "" {
			present++
		} else {
			missing = true
		}
		if len(a.Participants) > 0 {
			present++
		} else {
			missing = true
		}
		// Place is optional and contributes a half-point bonus.
		if strings.TrimSpace(a.Place) != "" {
			present += 0.5
		}
		sum += present / requiredFields
		if missing {
			incomplete++
		}
	}

	var issues []string
	if incomplete > 0 {
		issues = append(issues, fmt.Sprintf("데이터 누락: %d개 항목에서 필드 누락", incomplete))
	}
	return models.MetricResult{Score: sum / float64(len(actual)), Issues: issues}
}

func internalConsistency(actual []models.SettlementRecord) models.MetricResult {
	if len(actual) == 0 {
		return models.MetricResult{Score: 1}
	}

	var issues []string

	type key struct {
		item   string
		amount int64
		payer  string
	}
	seen := make(map[key]bool, len(actual))
	var problems int
	for _, a := range actual {
		k := key{
			item:   strings.ToLower(strings.TrimSpace(a.Item)),
			amount: a.Amount,
			payer:  strings.TrimSpace(a.Payer),
		}
		if seen[k] {
			problems++
			issues = append(issues, fmt.Sprintf("중복 항목 발견: %s (%d원)", a.Item, a.Amount))
		}
		seen[k] = true
	}

	for i, a := range actual {
		if len(a.Ratios) == 0 {
			continue
		}
		var total float64
		for _, r := range a.Ratios {
			total += r
		}
		if math.Abs(total-float64(len(a.Participants))) > 0.1 {
			problems++
			issues = append(issues, fmt.Sprintf("항목 %d: 비율 합계 불일치", i))
		}
	}

	score := math.Max(0, 1-float64(problems)/float64(len(actual)))
	return models.MetricResult{Score: score, Issues: issues}
}

func gradeFor(score float64) string {
	switch {
	case score >= 0.95:
		return "A+"
	case score >= 0.90:
		return "A"
	case score >= 0.85:
		return "B+"
	case score >= 0.80:
		return "B"
	case score >= 0.75:
		return "C+"
	case score >= 0.70:
		return "C"
	case score >= 0.60:
		return "D"
	default:
		return "F"
	}
}

func anySimilar(s string, candidates []string) bool {
	for _, c := range candidates {
		if textSimilarity(s, c) > 0.5 {
			return true
		}
	}
	return false
}

func amountPlausible(amount int64, expected []int64) bool {
	for _, e := range expected {
		if e <= 0 {
			continue
		}
		if math.Abs(float64(amount-e))/float64(e) <= 0.2 {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
