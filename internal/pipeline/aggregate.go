package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"outbound/internal"
	"outbound/internal/util"
)

// Aggregate is a full recompute over one batch of line items: group by
// (brand, product_code), sum quantities, pick the best-confidence
// representative and collect source descriptors.
//
// Representative selection on exact confidence ties keeps the first item
// encountered, so it is only as stable as the input ordering. Totals and
// source counts are order-independent.
func Aggregate(items []internal.LineItem, summaries []internal.ThreadSummary) internal.AggregationResult {
	type groupKey struct {
		brand string
		code  string
	}

	groups := map[groupKey][]internal.LineItem{}
	brandOrder := []string{}
	keyOrder := map[string][]groupKey{}

	for _, item := range items {
		// Below-threshold confidence is identical to "no match".
		if item.Confidence < internal.MinConfidence {
			continue
		}
		if strings.TrimSpace(item.Brand) == "" || strings.TrimSpace(item.ProductCode) == "" {
			continue
		}
		key := groupKey{brand: item.Brand, code: item.ProductCode}
		if _, seen := groups[key]; !seen {
			if len(keyOrder[key.brand]) == 0 {
				brandOrder = append(brandOrder, key.brand)
			}
			keyOrder[key.brand] = append(keyOrder[key.brand], key)
		}
		groups[key] = append(groups[key], item)
	}

	byBrand := map[string][]internal.AggregatedProduct{}
	flat := []internal.AggregatedProduct{}
	unique := 0

	for _, brand := range brandOrder {
		products := make([]internal.AggregatedProduct, 0, len(keyOrder[brand]))
		for _, key := range keyOrder[brand] {
			products = append(products, aggregateGroup(key.brand, key.code, groups[key]))
		}
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].TotalQuantity > products[j].TotalQuantity
		})
		byBrand[brand] = products
		flat = append(flat, products...)
		unique += len(products)
	}

	if summaries == nil {
		summaries = []internal.ThreadSummary{}
	}

	return internal.AggregationResult{
		ByBrand:         byBrand,
		Products:        flat,
		ThreadSummaries: summaries,
		TotalItems:      len(items),
		UniqueProducts:  unique,
		Brands:          brandOrder,
	}
}

func aggregateGroup(brand, code string, group []internal.LineItem) internal.AggregatedProduct {
	total := 0
	best := group[0]
	sources := []string{}
	seenSources := map[string]struct{}{}

	for _, item := range group {
		if n, ok := util.CoerceQuantity(item.Quantity); ok {
			total += n
		}
		// Strictly greater: the first item wins exact ties.
		if item.Confidence > best.Confidence {
			best = item
		}
		desc := sourceDescriptor(item)
		if _, seen := seenSources[desc]; !seen {
			seenSources[desc] = struct{}{}
			sources = append(sources, desc)
		}
	}

	return internal.AggregatedProduct{
		Brand:         brand,
		ProductCode:   code,
		CanonicalName: best.CanonicalName,
		TotalQuantity: total,
		Confidence:    best.Confidence,
		SourceCount:   len(group),
		Sources:       sources,
		Memo:          best.Memo,
		Items:         group,
	}
}

func sourceDescriptor(item internal.LineItem) string {
	if strings.TrimSpace(item.SourceRef) == "" {
		return string(item.Source)
	}
	return fmt.Sprintf("%s(%s)", item.Source, item.SourceRef)
}

// Validate computes the advisory statistics for one aggregation run. The
// passed flag never blocks export; that decision belongs to the caller.
func Validate(result internal.AggregationResult) internal.ValidationReport {
	report := internal.ValidationReport{
		TotalProducts: len(result.Products),
		SourceCounts:  map[string]int{},
		ThreadCount:   len(result.ThreadSummaries),
	}

	if len(result.Products) == 0 {
		return report
	}

	confidenceSum := 0.0
	for _, product := range result.Products {
		report.TotalQuantity += product.TotalQuantity
		confidenceSum += product.Confidence

		switch {
		case product.Confidence >= 80:
			report.Bands.High++
		case product.Confidence >= 60:
			report.Bands.Medium++
		default:
			report.Bands.Low++
		}

		for _, source := range product.Sources {
			report.SourceCounts[source]++
		}
	}

	report.AverageConfidence = math.Round(confidenceSum/float64(len(result.Products))*100) / 100
	report.Passed = report.AverageConfidence > 50
	return report
}

// Snapshot is the JSON audit record written after every run.
type Snapshot struct {
	GeneratedAt string                     `json:"generated_at"`
	Result      internal.AggregationResult `json:"result"`
	Report      internal.ValidationReport  `json:"report"`
}

func SaveSnapshot(result internal.AggregationResult, report internal.ValidationReport, path string) error {
	snap := Snapshot{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Result:      result,
		Report:      report,
	}
	blob, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o644)
}

func LoadSnapshot(path string) (Snapshot, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, nil
}

// SummaryReport renders the run statistics as a console report.
func SummaryReport(result internal.AggregationResult, report internal.ValidationReport) string {
	var b strings.Builder
	b.WriteString("=== 제품 집계 결과 ===\n\n")
	fmt.Fprintf(&b, "총 제품 종류: %d개\n", report.TotalProducts)
	fmt.Fprintf(&b, "총 수량: %d개\n", report.TotalQuantity)
	fmt.Fprintf(&b, "평균 신뢰도: %.2f%%\n", report.AverageConfidence)
	fmt.Fprintf(&b, "처리된 스레드: %d개\n\n", report.ThreadCount)

	fmt.Fprintf(&b, "신뢰도 분포: 높음(80+) %d / 보통(60-79) %d / 낮음(<60) %d\n\n",
		report.Bands.High, report.Bands.Medium, report.Bands.Low)

	b.WriteString("상위 제품 (수량 기준)\n")
	limit := len(result.Products)
	if limit > 10 {
		limit = 10
	}
	top := make([]internal.AggregatedProduct, len(result.Products))
	copy(top, result.Products)
	sort.SliceStable(top, func(i, j int) bool { return top[i].TotalQuantity > top[j].TotalQuantity })
	for i := 0; i < limit; i++ {
		fmt.Fprintf(&b, "%d. %s (코드: %s) - %d개\n", i+1, top[i].CanonicalName, top[i].ProductCode, top[i].TotalQuantity)
	}

	if report.Passed {
		b.WriteString("\n검증 통과: 데이터 품질이 양호합니다.\n")
	} else {
		b.WriteString("\n검증 실패: 데이터 품질을 확인해주세요.\n")
	}
	return b.String()
}
