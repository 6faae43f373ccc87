package nego

// currencySymbols is the closed reporting-currency code to display
// symbol mapping. Codes outside the map pass through unchanged, which
// also makes the mapping idempotent.
var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"AUD": "A$",
}

// CurrencySymbol maps a reporting-currency code to its display symbol.
func CurrencySymbol(code string) string {
	if sym, ok := currencySymbols[code]; ok {
		return sym
	}
	return code
}

// tenantRegions maps a tenant region prefix to its preferred currency.
var tenantRegions = map[string]string{
	"US": "USD",
	"EU": "EUR",
	"UK": "GBP",
	"AU": "AUD",
}

// PreferredCurrency returns the preferred currency code for a tenant id.
// Unknown regions default to EUR.
func PreferredCurrency(tenantID string) string {
	if len(tenantID) >= 2 {
		if code, ok := tenantRegions[tenantID[:2]]; ok {
			return code
		}
	}
	return "EUR"
}

// CurrencyPosition is where the symbol renders relative to the amount.
const CurrencyPosition = "prefix"
