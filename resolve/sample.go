package resolve

// SampleRecord returns the fixed synthetic record used for previews and for
// generation requests that carry no data. Every call returns a fresh copy with
// identical content.
func SampleRecord() map[string]any {
	return map[string]any{
		"client": map[string]any{
			"name":       "Jean Dupont",
			"first_name": "Jean",
			"last_name":  "Dupont",
			"email":      "jean.dupont@example.com",
			"phone":      "+33 1 23 45 67 89",
			"company":    "Dupont Conseil SARL",
			"vat_number": "FR12345678901",
			"address": map[string]any{
				"street":      "12 rue de la Paix",
				"postal_code": "75002",
				"city":        "Paris",
				"country":     "France",
			},
		},
		"offer": map[string]any{
			"reference":       "OFF-2024-0001",
			"date":            "2024-01-15",
			"valid_until":     "2024-02-15",
			"duration_months": 36,
		},
		"amounts": map[string]any{
			"financed_amount": 4500.00,
			"monthly_payment": 149.90,
			"total":           5396.40,
			"coefficient":     3.331,
		},
		"equipment": []any{
			map[string]any{
				"title":           "MacBook Pro 14",
				"category":        "Ordinateurs",
				"quantity":        1,
				"purchase_price":  2499.00,
				"monthly_payment": 149.90,
			},
		},
		"company": map[string]any{
			"name":    "Leazr",
			"email":   "contact@leazr.co",
			"website": "https://leazr.co",
		},
	}
}
