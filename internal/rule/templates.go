package rule

// FieldTemplate is one entry of the closed per-category condition
// vocabulary. Operators lists the allowed comparison subset; Dimensional
// marks fields that may be scoped to a dimension such as a city.
type FieldTemplate struct {
	Field       string
	Operators   []Operator
	Dimensional bool
}

var allOperators = []Operator{OpLessThan, OpLessOrEqual, OpEqual, OpGreaterOrEqual, OpGreaterThan}

// inequalityOnly excludes "=": continuous metrics like revenue are never
// compared for exact equality.
var inequalityOnly = []Operator{OpLessThan, OpLessOrEqual, OpGreaterOrEqual, OpGreaterThan}

var templatesByCategory = map[Category][]FieldTemplate{
	CategoryKPI: {
		{Field: "bookings_today", Operators: allOperators, Dimensional: true},
		{Field: "revenue_today", Operators: inequalityOnly, Dimensional: true},
		{Field: "active_rentals", Operators: allOperators, Dimensional: true},
		{Field: "cancellations_today", Operators: allOperators, Dimensional: true},
		{Field: "utilization_rate", Operators: inequalityOnly, Dimensional: true},
	},
	CategoryBehavior: {
		{Field: "owner_inactive_days", Operators: inequalityOnly, Dimensional: true},
		{Field: "renter_inactive_days", Operators: inequalityOnly, Dimensional: true},
		{Field: "owner_response_hours", Operators: inequalityOnly, Dimensional: false},
		{Field: "abandoned_checkouts", Operators: allOperators, Dimensional: true},
	},
	CategoryTime: {
		{Field: "document_expiry_days", Operators: inequalityOnly, Dimensional: true},
		{Field: "insurance_expiry_days", Operators: inequalityOnly, Dimensional: false},
		{Field: "listing_age_days", Operators: inequalityOnly, Dimensional: true},
	},
}

func TemplatesFor(category Category) []FieldTemplate {
	return templatesByCategory[category]
}

func TemplateFor(category Category, field string) (FieldTemplate, bool) {
	for _, t := range templatesByCategory[category] {
		if t.Field == field {
			return t, true
		}
	}
	return FieldTemplate{}, false
}

func (t FieldTemplate) SupportsOperator(op Operator) bool {
	for _, o := range t.Operators {
		if o == op {
			return true
		}
	}
	return false
}

func ValidCategory(category Category) bool {
	_, ok := templatesByCategory[category]
	return ok
}
