package util

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/twpayne/go-polyline"
)

func NotBlank(value string) bool {
	return strings.TrimSpace(value) != ""
}

func formatTime(format string, t time.Time) string {
	return t.Format(format)
}

func PointToLatLon(point pgtype.Point) (float64, float64) {
	return point.P.Y, point.P.X
}

// PointFromLatLon creates a pgtype.Point from latitude and longitude.
func PointFromLatLon(lat, lon float64) pgtype.Point {
	return pgtype.Point{
		P: pgtype.Vec2{
			X: lon,
			Y: lat,
		},
	}
}

func DecodePolyLines(shape string) ([][]float64, error) {
	decoded, _, err := polyline.DecodeCoords([]byte(shape))
	if err != nil {
		log.Println("error deocoding polyline: ", err)
		return nil, fmt.Errorf("failed to decode polyline %w", err)
	}
	return decoded, nil
}

// EncodePolyLines encodes a sequence of [lat, lng] pairs into the
// Google polyline5 wire format.
func EncodePolyLines(coords [][]float64) string {
	return string(polyline.EncodeCoords(coords))
}

// IntPtr returns a pointer to the given integer.
func IntPtr(i int) *int {
	return &i
}

// Float64Ptr returns a pointer to the given float.
func Float64Ptr(f float64) *float64 {
	return &f
}

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string {
	return &s
}
