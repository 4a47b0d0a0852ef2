// Package astro provides a last-resort lunar illumination estimate used when
// the external moon-phase service is unavailable. The estimate is a smooth,
// continuous approximation of the illuminated fraction; it is not
// phase-accurate to the day, which is acceptable for its only caller, the
// snapshot assembler's fallback path.
package astro

import (
	"math"
	"time"
)

// SynodicMonth is the mean time between successive new moons, in days.
const SynodicMonth = 29.53058867

// referenceNewMoonJD is the Julian Date of the reference new moon epoch,
// 2000-01-06 18:14 UTC.
const referenceNewMoonJD = 2451550.26

// JulianDay converts a civil instant to its Julian Date using the standard
// Gregorian conversion, where January and February count as months 13 and 14
// of the preceding year.
func JulianDay(t time.Time) float64 {
	t = t.UTC()
	year := t.Year()
	month := int(t.Month())
	day := float64(t.Day()) +
		(float64(t.Hour())+float64(t.Minute())/60.0+float64(t.Second())/3600.0)/24.0

	if month <= 2 {
		year--
		month += 12
	}

	a := year / 100
	b := 2 - a + a/4

	return math.Floor(365.25*float64(year+4716)) +
		math.Floor(30.6001*float64(month+1)) +
		day + float64(b) - 1524.5
}

// MoonIllumination returns the approximate illuminated fraction of the moon
// on the given date as a percentage in [0,100]. The lunar age is the days
// elapsed since the reference new moon reduced modulo the synodic month; the
// illuminated fraction is (1 - cos(2*pi*age/synodic))/2.
func MoonIllumination(date time.Time) float64 {
	age := math.Mod(JulianDay(date)-referenceNewMoonJD, SynodicMonth)
	if age < 0 {
		age += SynodicMonth
	}
	fraction := (1 - math.Cos(2*math.Pi*age/SynodicMonth)) / 2
	return fraction * 100
}
