// Package catalog holds the typed catalog records managed by the admin.
//
// The `admin` struct tag drives metadata.Inspect:
//
//	admin:"label=Title,type=select,options=/subcategories/all,required,column"
package catalog

import (
	"github.com/shopspring/decimal"

	"vinoteka/internal/core/id"
	"vinoteka/internal/core/lang"
)

// Category groups subcategories (red, white, spirits...).
type Category struct {
	ID          id.ID  `json:"id" admin:"label=ID,readonly,column"`
	Name        string `json:"name" admin:"label=Name,required,column"`
	Description string `json:"description" admin:"label=Description,column"`
}

// Subcategory belongs to a Category.
type Subcategory struct {
	ID         id.ID  `json:"id" admin:"label=ID,readonly,column"`
	Name       string `json:"name" admin:"label=Name,required,column"`
	CategoryID id.ID  `json:"category_id" admin:"label=Category,type=select,options=/categories/all,required,column"`
}

// Country is the root of the geography tree.
type Country struct {
	ID   id.ID  `json:"id" admin:"label=ID,readonly,column"`
	Name string `json:"name" admin:"label=Name,required,column"`
}

// Region belongs to a Country.
type Region struct {
	ID        id.ID  `json:"id" admin:"label=ID,readonly,column"`
	Name      string `json:"name" admin:"label=Name,required,column"`
	CountryID id.ID  `json:"country_id" admin:"label=Country,type=select,options=/countries/all,required,column"`
}

// Subregion belongs to a Region and is referenced by drinks.
type Subregion struct {
	ID       id.ID  `json:"id" admin:"label=ID,readonly,column"`
	Name     string `json:"name" admin:"label=Name,required,column"`
	RegionID id.ID  `json:"region_id" admin:"label=Region,type=select,options=/regions/all,required,column"`
}

// DrinkText is the per-language text of a drink.
type DrinkText struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Drink is a catalog product (a wine, a spirit...).
type Drink struct {
	ID            id.ID                     `json:"id" admin:"label=ID,readonly,column"`
	Title         string                    `json:"title" admin:"label=Title,required,column"`
	SubcategoryID id.ID                     `json:"subcategory_id" admin:"label=Subcategory,type=select,options=/subcategories/all,required,column"`
	SubregionID   id.ID                     `json:"subregion_id" admin:"label=Subregion,type=select,options=/subregions/all,required"`
	SweetnessID   id.ID                     `json:"sweetness_id" admin:"label=Sweetness,type=select,options=/sweetness/all"`
	Alc           decimal.Decimal           `json:"alc" admin:"label=Alcohol %,column"`
	Sugar         decimal.Decimal           `json:"sugar" admin:"label=Sugar g/l"`
	Age           int                       `json:"age" admin:"label=Age"`
	Sparkling     bool                      `json:"sparkling" admin:"label=Sparkling,column"`
	Foods         []id.ID                   `json:"foods" admin:"label=Foods,type=multiselect,options=/foods/all"`
	Varietals     []VarietalShare           `json:"varietals" admin:"label=Varietals,type=multiselect,options=/varietals/all,shares"`
	Localized     lang.Localized[DrinkText] `json:"localized" admin:"label=Translations,localized=title|description"`
}

// ItemText is the per-language text of an item.
type ItemText struct {
	Title string `json:"title"`
}

// Item is a sellable unit of a drink (a bottle size with a price).
type Item struct {
	ID        id.ID                    `json:"id" admin:"label=ID,readonly,column"`
	DrinkID   id.ID                    `json:"drink_id" admin:"label=Drink,type=select,options=/drinks/all,required,column"`
	Vol       decimal.Decimal          `json:"vol" admin:"label=Volume,required,column"`
	Price     decimal.Decimal          `json:"price" admin:"label=Price,required,column"`
	Count     int                      `json:"count" admin:"label=Count,column"`
	ImageID   string                   `json:"image_id" admin:"label=Image,type=image"`
	Localized lang.Localized[ItemText] `json:"localized" admin:"label=Translations,localized=title"`
}

// Title returns the item title in l, falling back to English.
func (i Item) Title(l lang.Language) string {
	if t := i.Localized.Get(l).Title; t != "" {
		return t
	}
	return i.Localized.EN.Title
}

// LocalTitle returns the drink title in l, falling back to the base title.
func (d Drink) LocalTitle(l lang.Language) string {
	if t := d.Localized.Get(l).Title; t != "" {
		return t
	}
	return d.Title
}

// HandbookEntry is a row of a simple reference table (sweetness, food, varietal).
type HandbookEntry struct {
	ID   id.ID  `json:"id"`
	Name string `json:"name"`
}
