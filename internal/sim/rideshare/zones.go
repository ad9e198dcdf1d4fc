package rideshare

import (
	"fmt"
	"math"
	"math/rand"
)

// Zone identifiers.
const (
	ZoneAirport       = "AIRPORT"
	ZoneDowntown      = "DOWNTOWN"
	ZoneMidtown       = "MIDTOWN"
	ZoneSuburbs       = "SUBURBS"
	ZoneUniversity    = "UNIVERSITY"
	ZoneEntertainment = "ENTERTAINMENT"
)

// zoneOrder fixes iteration order everywhere state is walked. Map order
// must never leak into outcomes.
var zoneOrder = []string{
	ZoneAirport,
	ZoneDowntown,
	ZoneMidtown,
	ZoneSuburbs,
	ZoneUniversity,
	ZoneEntertainment,
}

// Zones sit on a coarse city grid. Distance between zones is the
// manhattan grid distance scaled to road miles.
var zoneCoord = map[string][2]int{
	ZoneAirport:       {6, 0},
	ZoneDowntown:      {0, 0},
	ZoneMidtown:       {1, 1},
	ZoneSuburbs:       {4, 4},
	ZoneUniversity:    {0, 3},
	ZoneEntertainment: {1, 0},
}

// Per-gallon base price by zone. Suburbs run cheapest, the airport
// strip most expensive.
var zoneGasBase = map[string]float64{
	ZoneAirport:       4.35,
	ZoneDowntown:      4.10,
	ZoneMidtown:       3.95,
	ZoneSuburbs:       3.55,
	ZoneUniversity:    3.80,
	ZoneEntertainment: 4.05,
}

const milesPerGridStep = 3.0

func zoneDistance(from, to string) float64 {
	a, okA := zoneCoord[from]
	b, okB := zoneCoord[to]
	if !okA || !okB {
		return 0
	}
	dx := math.Abs(float64(a[0] - b[0]))
	dy := math.Abs(float64(a[1] - b[1]))
	return (dx + dy) * milesPerGridStep
}

func validZone(id string) bool {
	_, ok := zoneCoord[id]
	return ok
}

// baseDemand is the expected rider pressure for a zone at an hour of
// day, before randomness. The schedules are fixed so runs with equal
// seeds see equal cities.
func baseDemand(zone string, hourOfDay int) float64 {
	switch zone {
	case ZoneAirport:
		// Morning departures and evening arrivals.
		if (hourOfDay >= 5 && hourOfDay <= 9) || (hourOfDay >= 16 && hourOfDay <= 20) {
			return 2.6
		}
		return 1.0
	case ZoneDowntown:
		if (hourOfDay >= 7 && hourOfDay <= 9) || (hourOfDay >= 16 && hourOfDay <= 18) {
			return 3.0
		}
		if hourOfDay >= 10 && hourOfDay <= 15 {
			return 1.6
		}
		return 0.6
	case ZoneMidtown:
		if hourOfDay >= 8 && hourOfDay <= 19 {
			return 1.8
		}
		return 0.8
	case ZoneSuburbs:
		if hourOfDay >= 6 && hourOfDay <= 8 {
			return 1.4
		}
		return 0.5
	case ZoneUniversity:
		if hourOfDay >= 9 && hourOfDay <= 17 {
			return 1.7
		}
		if hourOfDay >= 21 || hourOfDay <= 1 {
			return 1.2
		}
		return 0.4
	case ZoneEntertainment:
		if hourOfDay >= 20 || hourOfDay <= 2 {
			return 3.2
		}
		if hourOfDay >= 17 {
			return 1.5
		}
		return 0.4
	}
	return 0.5
}

// surgeFor maps demand pressure to a fare multiplier in [1.0, 2.5].
func surgeFor(demand float64) float64 {
	s := 0.8 + demand*0.45
	if s < 1.0 {
		s = 1.0
	}
	if s > 2.5 {
		s = 2.5
	}
	return math.Round(s*100) / 100
}

// hourRand derives the per-hour stream. Regenerating hour N always
// yields the same city, which keeps snapshot resumes exact.
func hourRand(seed int64, hour int) *rand.Rand {
	return rand.New(rand.NewSource(seed ^ int64(hour)*0x9e3779b9))
}

// regenerateZones rebuilds demand, surge, gas prices and open requests
// for the given hour. Prior requests expire wholesale.
func (s *State) regenerateZones(hour int) {
	rng := hourRand(s.Seed, hour)
	hourOfDay := s.HourOfDay
	for _, id := range zoneOrder {
		z := s.Zones[id]
		demand := baseDemand(id, hourOfDay) * (0.85 + rng.Float64()*0.3)
		z.Demand = math.Round(demand*100) / 100
		z.Surge = surgeFor(z.Demand)
		z.ActiveDrivers = 2 + rng.Intn(9)
		z.GasPrice = math.Round((zoneGasBase[id]+rng.Float64()*0.3-0.15)*100) / 100
		z.Requests = z.Requests[:0]

		n := int(z.Demand + rng.Float64())
		if n > 4 {
			n = 4
		}
		for i := 0; i < n; i++ {
			s.ReqSeq++
			dest := zoneOrder[rng.Intn(len(zoneOrder))]
			for dest == id {
				dest = zoneOrder[rng.Intn(len(zoneOrder))]
			}
			miles := zoneDistance(id, dest) + 1 + rng.Float64()*3
			z.Requests = append(z.Requests, &PendingRequest{
				ID:          fmt.Sprintf("R%d", s.ReqSeq),
				Zone:        id,
				Dest:        dest,
				Miles:       math.Round(miles*10) / 10,
				Surge:       z.Surge,
				ExpiresHour: hour + 1,
			})
		}
	}
}
