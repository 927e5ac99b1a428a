package pattern

// DefaultRules returns the built-in curated rule table. Order matters: more
// specific rules come before the broad ones they would otherwise shadow.
func DefaultRules() []Rule {
	rules := []Rule{
		// Income
		{Name: "Payroll", Pattern: `\b(PAYROLL|SALARIO|SALARY|PLANILLA|DIRECT\s*DEP)\b`, IsRegex: true, CategoryID: "Income", Confidence: 0.95},
		{Name: "Interest", Pattern: `\b(INTERESES?|INTEREST|DIVIDEND)\b`, IsRegex: true, CategoryID: "Income", Confidence: 0.92},

		// Delivery before ride hailing: "UBER EATS" must not land in Transport.
		{Name: "Uber Eats", Pattern: "uber eats", CategoryID: "Dining", Confidence: 0.95},
		{Name: "Food delivery", Pattern: `\b(DOORDASH|RAPPI|GLOVO|DIDI\s*FOOD|GRUBHUB)\b`, IsRegex: true, CategoryID: "Dining", Confidence: 0.93},
		{Name: "Ride hailing", Pattern: `\b(UBER|LYFT|DIDI|CABIFY)\b`, IsRegex: true, CategoryID: "Transport", Confidence: 0.92},
		{Name: "Fuel", Pattern: `\b(SHELL|GASOLINERA|SERVICENTRO|CHEVRON|EXXON|TEXACO)\b`, IsRegex: true, CategoryID: "Transport", Confidence: 0.92},

		// Groceries
		{Name: "Supermarkets", Pattern: `\b(WALMART|AUTOMERCADO|MAS\s*X\s*MENOS|PALI|MEGASUPER|COSTCO|KROGER|SAFEWAY)\b`, IsRegex: true, CategoryID: "Groceries", Confidence: 0.92},

		// Subscriptions
		{Name: "Spotify", Pattern: "spotify", CategoryID: "Entertainment", Confidence: 0.95},
		{Name: "Disney Plus", Pattern: "disney plus", CategoryID: "Entertainment", Confidence: 0.95},

		// Utilities
		{Name: "Electricity", Pattern: `\b(ICE\s*ELECTRICIDAD|CNFL|ELECTRIC)\b`, IsRegex: true, CategoryID: "Utilities", Confidence: 0.93},
		{Name: "Telecom", Pattern: `\b(KOLBI|LIBERTY|CLARO|MOVISTAR|VERIZON|COMCAST)\b`, IsRegex: true, CategoryID: "Utilities", Confidence: 0.92},

		// Fees
		{Name: "Bank fees", Pattern: `\b(COMISION|COMMISSION|CARGO\s*POR\s*SERVICIO|SERVICE\s*FEE|OVERDRAFT)\b`, IsRegex: true, CategoryID: "Fees", Confidence: 0.94},
		{Name: "ATM", Pattern: `\b(ATM|CAJERO|RETIRO)\b`, IsRegex: true, CategoryID: "Cash", Confidence: 0.90},
	}

	for i := range rules {
		rules[i].Position = i
		rules[i].IsActive = true
	}
	return rules
}
