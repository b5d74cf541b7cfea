package valueobject

import (
	"strings"
)

type Category string

const (
	CategoryRoadInfrastructure    Category = "road_infrastructure"
	CategoryWaterSanitation       Category = "water_sanitation"
	CategoryElectricityPower      Category = "electricity_power"
	CategoryWasteManagement       Category = "waste_management"
	CategoryTrafficTransport      Category = "traffic_transport"
	CategoryPublicSafety          Category = "public_safety"
	CategoryEnvironmentPollution  Category = "environment_pollution"
	CategoryHealthcareMedical     Category = "healthcare_medical"
	CategoryEducationSchools      Category = "education_schools"
	CategoryTelecommunication     Category = "telecommunication"
	CategoryHousingConstruction   Category = "housing_construction"
	CategoryGeneralAdministration Category = "general_administration"
)

// Categories содержит закрытый список категорий, на который может опираться любой потребитель.
var Categories = []Category{
	CategoryRoadInfrastructure,
	CategoryWaterSanitation,
	CategoryElectricityPower,
	CategoryWasteManagement,
	CategoryTrafficTransport,
	CategoryPublicSafety,
	CategoryEnvironmentPollution,
	CategoryHealthcareMedical,
	CategoryEducationSchools,
	CategoryTelecommunication,
	CategoryHousingConstruction,
	CategoryGeneralAdministration,
}

func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Label возвращает название для людей: road_infrastructure -> Road Infrastructure.
func (c Category) Label() string {
	return titleWords(strings.ReplaceAll(string(c), "_", " "))
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityVeryHigh Priority = "very_high"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityVeryHigh}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityVeryHigh:
		return true
	}
	return false
}

func (p Priority) Label() string {
	return titleWords(strings.ReplaceAll(string(p), "_", " "))
}

type Department string

const (
	DepartmentPublicWorks           Department = "Public Works Department"
	DepartmentWaterSanitation       Department = "Water & Sanitation Department"
	DepartmentPower                 Department = "Power Department"
	DepartmentWasteManagement       Department = "Waste Management Department"
	DepartmentTrafficPolice         Department = "Traffic Police Department"
	DepartmentPublicSafety          Department = "Public Safety Department"
	DepartmentEnvironmental         Department = "Environmental Department"
	DepartmentHealth                Department = "Health Department"
	DepartmentEducation             Department = "Education Department"
	DepartmentTelecommunication     Department = "Telecommunication Department"
	DepartmentHousingConstruction   Department = "Housing & Construction Department"
	DepartmentFire                  Department = "Fire Department"
	DepartmentMunicipalCorporation  Department = "Municipal Corporation"
	DepartmentRevenue               Department = "Revenue Department"
	DepartmentGeneralAdministration Department = "General Administration"
)

var Departments = []Department{
	DepartmentPublicWorks,
	DepartmentWaterSanitation,
	DepartmentPower,
	DepartmentWasteManagement,
	DepartmentTrafficPolice,
	DepartmentPublicSafety,
	DepartmentEnvironmental,
	DepartmentHealth,
	DepartmentEducation,
	DepartmentTelecommunication,
	DepartmentHousingConstruction,
	DepartmentFire,
	DepartmentMunicipalCorporation,
	DepartmentRevenue,
	DepartmentGeneralAdministration,
}

func (d Department) IsValid() bool {
	for _, known := range Departments {
		if d == known {
			return true
		}
	}
	return false
}

// Значения по умолчанию для полей, которые модель не вернула или вернула вне диапазона.
const (
	DefaultCategory       = CategoryGeneralAdministration
	DefaultPriority       = PriorityMedium
	DefaultDepartment     = DepartmentMunicipalCorporation
	DefaultResolutionDays = 7

	MinResolutionDays = 1
	MaxResolutionDays = 30
)

// Classification хранит итог классификации фото. Все поля всегда заполнены
// значениями из закрытых списков.
type Classification struct {
	Category       Category   `json:"category"`
	Priority       Priority   `json:"priority"`
	Department     Department `json:"department"`
	ResolutionDays int        `json:"resolution_days"`
}

// RawClassification хранит то, что вернула модель, до нормализации.
type RawClassification struct {
	Category       *string `json:"category"`
	Priority       *string `json:"priority"`
	Department     *string `json:"department"`
	ResolutionDays *int    `json:"resolution_days"`
}

// NormalizeClassification подставляет значения по умолчанию вместо пустых и
// неизвестных значений. resolution_days больше максимума прижимается к 30,
// меньше единицы считается отсутствующим.
func NormalizeClassification(raw RawClassification) Classification {
	c := Classification{
		Category:       DefaultCategory,
		Priority:       DefaultPriority,
		Department:     DefaultDepartment,
		ResolutionDays: DefaultResolutionDays,
	}

	if raw.Category != nil {
		if cat, ok := matchCategory(*raw.Category); ok {
			c.Category = cat
		}
	}
	if raw.Priority != nil {
		if p, ok := matchPriority(*raw.Priority); ok {
			c.Priority = p
		}
	}
	if raw.Department != nil {
		if d, ok := matchDepartment(*raw.Department); ok {
			c.Department = d
		}
	}
	if raw.ResolutionDays != nil {
		days := *raw.ResolutionDays
		switch {
		case days > MaxResolutionDays:
			c.ResolutionDays = MaxResolutionDays
		case days >= MinResolutionDays:
			c.ResolutionDays = days
		}
	}

	return c
}

// IsComplete проверяет, что все поля заполнены допустимыми значениями.
func (c Classification) IsComplete() bool {
	return c.Category.IsValid() &&
		c.Priority.IsValid() &&
		c.Department.IsValid() &&
		c.ResolutionDays >= MinResolutionDays &&
		c.ResolutionDays <= MaxResolutionDays
}

func matchCategory(v string) (Category, bool) {
	key := normalizeKey(v)
	for _, c := range Categories {
		if string(c) == key {
			return c, true
		}
	}
	return "", false
}

func matchPriority(v string) (Priority, bool) {
	p := Priority(normalizeKey(v))
	return p, p.IsValid()
}

func matchDepartment(v string) (Department, bool) {
	needle := strings.Join(strings.Fields(strings.ToLower(v)), " ")
	for _, d := range Departments {
		if strings.ToLower(string(d)) == needle {
			return d, true
		}
	}
	return "", false
}

// normalizeKey приводит "Very High" и "very-high" к виду very_high.
func normalizeKey(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.ReplaceAll(v, "-", " ")
	return strings.Join(strings.Fields(v), "_")
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
