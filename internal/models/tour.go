package models

import (
	"math"
	"regexp"
	"strings"

	"natours/api/internal/resource"
)

const (
	TourName           = "name"
	TourSlug           = "slug"
	TourDuration       = "duration"
	TourDurationWeeks  = "durationWeeks"
	TourRatingsAverage = "ratingsAverage"
	TourPrice          = "price"
	TourPriceDiscount  = "priceDiscount"
	TourSecret         = "secretTour"
	TourGuides         = "guides"
	TourCreatedAt      = "createdAt"
)

var TourDescriptor = resource.MustNew(resource.Descriptor{
	Name: "tours",
	Fields: []resource.Field{
		{Name: TourName, Type: resource.String, Mutability: resource.OwnerWritable, Required: true, Unique: true,
			Trim: true, Rules: "min=10,max=40", Filterable: true, Sortable: true},
		{Name: TourSlug, Type: resource.String, Filterable: true},
		{Name: TourDuration, Type: resource.Number, Mutability: resource.OwnerWritable, Required: true,
			Rules: "gt=0", Filterable: true, Sortable: true},
		{Name: "maxGroupSize", Type: resource.Integer, Mutability: resource.OwnerWritable, Required: true,
			Rules: "gt=0", Filterable: true, Sortable: true},
		{Name: "difficulty", Type: resource.String, Mutability: resource.OwnerWritable, Required: true, Trim: true,
			Lower: true, Rules: "oneof=easy medium difficult", Filterable: true, Sortable: true},
		{Name: TourRatingsAverage, Type: resource.Number, Mutability: resource.OwnerWritable, Default: 4.5,
			Rules: "gte=1,lte=5", Filterable: true, Sortable: true},
		{Name: "ratingsQuantity", Type: resource.Integer, Mutability: resource.OwnerWritable, Default: int64(0),
			Rules: "gte=0", Filterable: true, Sortable: true},
		{Name: TourPrice, Type: resource.Number, Mutability: resource.OwnerWritable, Required: true,
			Rules: "gte=0", Filterable: true, Sortable: true},
		{Name: TourPriceDiscount, Type: resource.Number, Mutability: resource.OwnerWritable, LessThan: TourPrice,
			Rules: "gte=0", Filterable: true, Sortable: true},
		{Name: "summary", Type: resource.String, Mutability: resource.OwnerWritable, Required: true, Trim: true},
		{Name: "description", Type: resource.String, Mutability: resource.OwnerWritable, Trim: true},
		{Name: "imageCover", Type: resource.String, Mutability: resource.OwnerWritable, Required: true},
		{Name: "images", Type: resource.StringList, Mutability: resource.OwnerWritable},
		{Name: "startDates", Type: resource.TimeList, Mutability: resource.OwnerWritable, Filterable: true},
		{Name: "startLocation", Type: resource.Object, Mutability: resource.OwnerWritable},
		{Name: "locations", Type: resource.Object, Mutability: resource.OwnerWritable},
		{Name: TourSecret, Type: resource.Bool, Mutability: resource.AdminOnly, Default: false},
		{Name: TourGuides, Type: resource.StringList, Mutability: resource.OwnerWritable, Filterable: true},
		{Name: TourCreatedAt, Type: resource.Time, Default: now, Internal: true, Filterable: true, Sortable: true},
	},
	DefaultSort:  TourCreatedAt,
	DefaultLimit: 100,
	MaxLimit:     100,
	HiddenMarker: TourSecret,
	Includes: []resource.Include{{
		Field:    TourGuides,
		Resource: AccountDescriptor.Name,
		Exclude:  []string{AccountPasswordChangedAt},
	}},
	Normalize: normalizeTour,
	Present:   presentTour,
})

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func normalizeTour(rec resource.Record) {
	if name, ok := rec[TourName].(string); ok {
		rec[TourSlug] = Slugify(name)
	}
	if avg, ok := rec[TourRatingsAverage].(float64); ok {
		rec[TourRatingsAverage] = math.Round(avg*10) / 10
	}
}

// presentTour adds durationWeeks whenever duration is part of the record.
func presentTour(rec resource.Record) {
	if days, ok := rec[TourDuration].(float64); ok {
		rec[TourDurationWeeks] = days / 7
	}
}
