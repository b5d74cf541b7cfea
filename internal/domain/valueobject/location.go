package valueobject

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// legacyGPSPrefix отмечает старый формат, в котором раньше сохранялась геопозиция из WhatsApp.
const legacyGPSPrefix = "GPS:"

// gpsPairPattern ищет пару "lat, lng" в начале строки. Обе части должны быть
// дробными, иначе "12, 5th Cross Road" превратилась бы в координаты.
var gpsPairPattern = regexp.MustCompile(`^\s*(-?\d{1,3}\.\d+)\s*,\s*(-?\d{1,3}\.\d+)`)

// canonicalPairPattern совпадает со всей строкой целиком, поэтому целые числа
// допустимы: так FormatCoordinates пишет, например, "12,77.5" и "0,0".
var canonicalPairPattern = regexp.MustCompile(`^\s*(-?\d{1,3}(?:\.\d+)?)\s*,\s*(-?\d{1,3}(?:\.\d+)?)\s*$`)

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p GeoPoint) IsValid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Location описывает место происшествия в том виде, в каком его понимают потребители
// сохранённой жалобы: либо точка, либо непрозрачный текст.
type Location struct {
	Raw   string    `json:"raw"`
	Point *GeoPoint `json:"point,omitempty"`
}

func (l Location) HasPoint() bool {
	return l.Point != nil
}

func (l Location) String() string {
	return l.Raw
}

// FormatCoordinates возвращает каноническую запись геопозиции, пришедшей из WhatsApp.
func FormatCoordinates(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}

// ParseLocation разбирает сохранённое значение coordinates. Каноническая форма
// "lat,lng" и текст с парой координат в начале дают точку; устаревшие форматы
// "GPS: lat, lng" и {"lat":..,"lng":..} переводятся здесь же, дальше не уходят.
func ParseLocation(coordinates string) Location {
	raw := strings.TrimSpace(coordinates)
	loc := Location{Raw: raw}
	if raw == "" {
		return loc
	}

	candidate := raw
	if strings.HasPrefix(strings.ToUpper(candidate), legacyGPSPrefix) {
		candidate = strings.TrimSpace(candidate[len(legacyGPSPrefix):])
	}

	if strings.HasPrefix(candidate, "{") {
		var p GeoPoint
		if err := json.Unmarshal([]byte(candidate), &p); err == nil && p.IsValid() {
			loc.Point = &p
		}
		return loc
	}

	m := canonicalPairPattern.FindStringSubmatch(candidate)
	if m == nil {
		m = gpsPairPattern.FindStringSubmatch(candidate)
	}
	if m == nil {
		return loc
	}

	lat, errLat := strconv.ParseFloat(m[1], 64)
	lng, errLng := strconv.ParseFloat(m[2], 64)
	if errLat != nil || errLng != nil {
		return loc
	}

	p := GeoPoint{Lat: lat, Lng: lng}
	if p.IsValid() {
		loc.Point = &p
	}
	return loc
}
