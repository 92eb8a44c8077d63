package scan

import "fmt"

// Category represents a class of scanning concern.
type Category string

const (
	// CategorySAST covers static application security testing of source code.
	CategorySAST Category = "sast"

	// CategorySCA covers software composition analysis of dependencies.
	CategorySCA Category = "sca"

	// CategorySecrets covers detection of committed credentials and tokens.
	CategorySecrets Category = "secrets"

	// CategoryIaC covers infrastructure-as-code misconfiguration analysis.
	CategoryIaC Category = "iac"

	// CategoryContainer covers container image and Dockerfile analysis.
	CategoryContainer Category = "container"

	// CategoryCustom covers scanner plugins outside the built-in categories.
	CategoryCustom Category = "custom"
)

// IsValid returns true if the category is valid.
func (c Category) IsValid() bool {
	switch c {
	case CategorySAST, CategorySCA, CategorySecrets, CategoryIaC, CategoryContainer, CategoryCustom:
		return true
	default:
		return false
	}
}

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// DisplayName returns a human-readable display name for the category.
func (c Category) DisplayName() string {
	switch c {
	case CategorySAST:
		return "Static Analysis"
	case CategorySCA:
		return "Dependency Audit"
	case CategorySecrets:
		return "Secret Detection"
	case CategoryIaC:
		return "Infrastructure as Code"
	case CategoryContainer:
		return "Container Analysis"
	case CategoryCustom:
		return "Custom"
	default:
		return string(c)
	}
}

// ParseCategory parses a string into a Category value.
// Returns an error if the string is not a valid category.
func ParseCategory(s string) (Category, error) {
	category := Category(s)
	if !category.IsValid() {
		return "", fmt.Errorf("invalid scan category: %s", s)
	}
	return category, nil
}

// AllCategories returns all valid categories.
func AllCategories() []Category {
	return []Category{
		CategorySAST,
		CategorySCA,
		CategorySecrets,
		CategoryIaC,
		CategoryContainer,
		CategoryCustom,
	}
}

// BuiltinCategories returns the categories with a designated default
// backend, in the order the engine runs them.
func BuiltinCategories() []Category {
	return []Category{
		CategorySAST,
		CategorySCA,
		CategorySecrets,
		CategoryIaC,
		CategoryContainer,
	}
}
