package echogram

import (
	"fmt"

	"github.com/ooi-uploader/backend/internal/models"
)

const (
	beamGroup   = "Beam"
	pingTimeVar = "ping_time"
)

// firstPingTime reads the timestamp of the first sounding in the echogram.
// Hourly files keep their ping_time series under the Beam group and store it
// in NTP seconds already; the aggregate products are flattened and store Unix
// seconds at the top level.
func (c *Correlator) firstPingTime(path string, kind models.AggregationKind) (float64, error) {
	f, err := c.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if kind == models.KindHourly {
		g, err := f.Group(beamGroup)
		if err != nil {
			return 0, err
		}
		pings, err := g.Var(pingTimeVar)
		if err != nil {
			return 0, err
		}
		if len(pings) == 0 {
			return 0, fmt.Errorf("echogram %s: empty ping_time series", path)
		}
		return pings[0], nil
	}

	pings, err := f.Var(pingTimeVar)
	if err != nil {
		return 0, err
	}
	if len(pings) == 0 {
		return 0, fmt.Errorf("echogram %s: empty ping_time series", path)
	}
	return NTPFromUnix(pings[0]), nil
}
