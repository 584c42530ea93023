package schedule

import (
	"math"

	"github.com/goatboynz/ha-WaterME/internal/database/models"
)

// Volume derives the delivered volume of one shot from its duration and the
// zone's dripper geometry. Returns total ml for the zone and ml per plant,
// each rounded to one decimal.
func Volume(zone *models.Zone, durationSec float64) (totalMl, perPlantMl float64) {
	mlPerMin := zone.DripperRateLph * 1000.0 / 60.0
	totalMl = mlPerMin / 60.0 * durationSec * float64(zone.DrippersPerZone)

	plants := float64(zone.DrippersPerZone) / math.Max(1, float64(zone.DrippersPerPlant))
	perPlantMl = totalMl / math.Max(1, plants)

	return round1(totalMl), round1(perPlantMl)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
