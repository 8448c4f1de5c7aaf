package cardtrader

// apiExpansion from GET /expansions.
type apiExpansion struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// apiBlueprint from GET /blueprints/export.
type apiBlueprint struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ExpansionID int    `json:"expansion_id"`

	FixedProperties struct {
		CollectorNumber string `json:"collector_number"`
	} `json:"fixed_properties"`
}

// apiProduct from GET /marketplace/products. Prices are integer cents.
type apiProduct struct {
	ID          int `json:"id"`
	BlueprintID int `json:"blueprint_id"`
	Quantity    int `json:"quantity"`

	Price struct {
		Cents    int    `json:"cents"`
		Currency string `json:"currency"`
	} `json:"price"`

	PropertiesHash struct {
		Condition string `json:"condition"`
		Language  string `json:"mtg_language"`
		Foil      bool   `json:"mtg_foil"`
	} `json:"properties_hash"`
}
