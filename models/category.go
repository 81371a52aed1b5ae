package models

// Category classifies posts. Post.Category holds the category Name.
type Category struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"size:64;uniqueIndex;not null" json:"name"`
	Slug      string `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	Color     string `gorm:"size:16" json:"color"`
	TextColor string `gorm:"size:16" json:"text_color"`
}

// AllCategories is the sentinel filter value meaning "no category filter".
const AllCategories = "all"

// DefaultCategories seeds new stores and backs the file store.
func DefaultCategories() []Category {
	return []Category{
		{ID: 1, Name: "Business", Slug: "business", Color: "#1d4ed8", TextColor: "#ffffff"},
		{ID: 2, Name: "Health", Slug: "health", Color: "#15803d", TextColor: "#ffffff"},
		{ID: 3, Name: "Technology", Slug: "technology", Color: "#7c3aed", TextColor: "#ffffff"},
		{ID: 4, Name: "Other", Slug: "other", Color: "#e5e7eb", TextColor: "#111827"},
	}
}

// CategoryNames returns the names used for validation.
func CategoryNames(cats []Category) []string {
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		names = append(names, c.Name)
	}
	return names
}
