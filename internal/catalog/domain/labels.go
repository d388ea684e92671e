package domain

var statusLabels = map[ProductStatus]string{
	StatusAvailable:    "Available",
	StatusOutOfStock:   "Out of stock",
	StatusDiscontinued: "Discontinued",
}

var categoryLabels = map[Category]string{
	CategoryMilk:   "Milk and dairy",
	CategoryMeat:   "Goat meat",
	CategoryCheese: "Cheese",
	CategoryYogurt: "Yogurt and drinks",
	CategoryOther:  "Other products",
}

// Categories lists categories in display order.
var Categories = []Category{CategoryMilk, CategoryMeat, CategoryCheese, CategoryYogurt, CategoryOther}

func (s ProductStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s ProductStatus) DisplayName() string { return statusLabels[s] }

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

func (c Category) DisplayName() string { return categoryLabels[c] }
