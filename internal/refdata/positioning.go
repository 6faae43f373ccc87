package refdata

import (
	"strings"

	"negofactory/internal/nego"
)

// The four category positionings from the spend-share x market
// complexity matrix.
const (
	PositioningStrategicPartnership = "strategic partnership"
	PositioningLeverage             = "leverage"
	PositioningBottleneck           = "bottleneck"
	PositioningShop                 = "shop"
)

// Buyer attractiveness takes exactly two values.
const (
	BuyerStrategic    = "strategic"
	BuyerNonStrategic = "non-strategic"
)

// spendShareThreshold splits high from low supplier share of category
// spend when deriving the category positioning.
const spendShareThreshold = 80.0

var categoryPositioningDetails = map[string]string{
	PositioningLeverage:             "This positioning suggests that the category has a high potential for cost savings and efficiency improvements. By leveraging volume and negotiating power, you can achieve better terms and lower prices. Typically, 60-80% of procurement savings can be realized through leverage strategies.",
	PositioningShop:                 "This approach focuses on competitive bidding and shopping around for the best deals. It is ideal when there are multiple suppliers and the market is competitive, allowing for price reductions of up to 20%.",
	PositioningBottleneck:           "Categories in this position are critical but have limited suppliers, leading to potential supply risks. Managing these requires strategic planning to ensure continuity, often resulting in a 10-15% increase in security of supply.",
	PositioningStrategicPartnership: "This involves forming long-term relationships with key suppliers to drive innovation and value. It can lead to a 15-30% improvement in service levels and collaborative growth.",
}

var supplierPositioningDetails = map[string]string{
	"ramp down": "Consider ramping down suppliers that are underperforming or not aligning with strategic goals. This can free up resources and reduce costs by 15-20%, allowing focus on more beneficial partnerships.",
	"grow":      "Focus on growing relationships with suppliers that show potential for increased collaboration. This can lead to improved terms and conditions, potentially saving 10% on procurement costs and enhancing supply chain resilience.",
	"core":      "Identify core suppliers that are critical to operations. Strengthening these relationships can ensure stability and reliability, reducing risks by 25% and securing long-term benefits.",
	"nuisance":  "Suppliers that consistently cause issues or require excessive management should be categorized as nuisances. Redirecting efforts away from these can improve efficiency by 30% and allow focus on more strategic partnerships.",
}

var buyerAttractivenessDetails = map[string]string{
	BuyerStrategic:    "The buyer is a strategic account for this supplier, giving the buyer standing to ask for preferential treatment.",
	BuyerNonStrategic: "The buyer is not a strategic account for this supplier, so leverage must come from the deal itself.",
}

// CategoryPositioning derives the positioning from the supplier's share
// of category spend (percent) and the category's market complexity.
// Unknown complexity is treated as high.
func CategoryPositioning(spendSharePct float64, marketComplexity string) string {
	high := !strings.EqualFold(strings.TrimSpace(marketComplexity), "Low")
	if spendSharePct >= spendShareThreshold {
		if high {
			return PositioningStrategicPartnership
		}
		return PositioningLeverage
	}
	if high {
		return PositioningBottleneck
	}
	return PositioningShop
}

// CategoryPositioningDetail returns the stock explanation for a
// category positioning, empty for unknown values.
func CategoryPositioningDetail(positioning string) string {
	return categoryPositioningDetails[strings.ToLower(strings.TrimSpace(positioning))]
}

// SupplierPositionings lists the selectable supplier positionings in
// presentation order.
func SupplierPositionings() []nego.ValueDetail {
	return []nego.ValueDetail{
		{Value: "Grow", Details: supplierPositioningDetails["grow"]},
		{Value: "Core", Details: supplierPositioningDetails["core"]},
		{Value: "Ramp Down", Details: supplierPositioningDetails["ramp down"]},
		{Value: "Nuisance", Details: supplierPositioningDetails["nuisance"]},
	}
}

// CategoryPositionings lists the four category positionings with the
// selected one first.
func CategoryPositionings(selected, selectedDetail string) []nego.ValueDetail {
	out := make([]nego.ValueDetail, 0, len(categoryPositioningDetails))
	key := strings.ToLower(strings.TrimSpace(selected))
	if stock, ok := categoryPositioningDetails[key]; ok {
		detail := selectedDetail
		if detail == "" {
			detail = stock
		}
		out = append(out, nego.ValueDetail{Value: titleCase(key), Details: detail})
	}
	for _, name := range []string{PositioningLeverage, PositioningShop, PositioningBottleneck, PositioningStrategicPartnership} {
		if name == key {
			continue
		}
		out = append(out, nego.ValueDetail{Value: titleCase(name), Details: categoryPositioningDetails[name]})
	}
	return out
}

// SupplierPositionOptions mirrors CategoryPositionings for the supplier
// positioning map.
func SupplierPositionOptions(selected, selectedDetail string) []nego.ValueDetail {
	out := make([]nego.ValueDetail, 0, len(supplierPositioningDetails))
	key := strings.ToLower(strings.TrimSpace(selected))
	if stock, ok := supplierPositioningDetails[key]; ok {
		detail := selectedDetail
		if detail == "" {
			detail = stock
		}
		out = append(out, nego.ValueDetail{Value: titleCase(key), Details: detail})
	}
	for _, name := range []string{"grow", "core", "ramp down", "nuisance"} {
		if name == key {
			continue
		}
		out = append(out, nego.ValueDetail{Value: titleCase(name), Details: supplierPositioningDetails[name]})
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// SupplierPositioningDetail returns the stock explanation for a
// supplier positioning, empty for unknown values.
func SupplierPositioningDetail(positioning string) string {
	return supplierPositioningDetails[strings.ToLower(strings.TrimSpace(positioning))]
}

// BuyerAttractivenessDetail returns the stock explanation for a buyer
// attractiveness value, empty for unknown values.
func BuyerAttractivenessDetail(value string) string {
	return buyerAttractivenessDetails[strings.ToLower(strings.TrimSpace(value))]
}

// NormalizeBuyerAttractiveness folds free-text answers onto the closed
// pair, defaulting non-strategic.
func NormalizeBuyerAttractiveness(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if strings.Contains(v, "non") || v == "" {
		return BuyerNonStrategic
	}
	if strings.Contains(v, "strategic") || strings.Contains(v, "yes") {
		return BuyerStrategic
	}
	return BuyerNonStrategic
}
