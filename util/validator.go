package util

import "github.com/go-playground/validator/v10"

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("latitude", validateLatitude)
	validate.RegisterValidation("longitude", validateLongitude)
	validate.RegisterValidation("side", validateSide)
}

func validateLatitude(fl validator.FieldLevel) bool {
	lat := fl.Field().Float()
	return lat >= -90 && lat <= 90
}

func validateLongitude(fl validator.FieldLevel) bool {
	lon := fl.Field().Float()
	return lon >= -180 && lon <= 180
}

func validateSide(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "none", "left", "right":
		return true
	}
	return false
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidCoordinate reports whether a [lat, lng] pair is well formed
// and within WGS84 range. Requests are rejected on the first bad
// coordinate before any geometry computation runs.
func ValidCoordinate(pair []float64) bool {
	if len(pair) != 2 {
		return false
	}
	lat, lng := pair[0], pair[1]
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
