package rules

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Feature variable names available to rule expressions.
const (
	FeatureOddHourCount    = "odd_hour_count"
	FeatureDistinctDevices = "distinct_devices"
	FeatureDistinctIPs     = "distinct_ips"
	FeatureFailedCheckIns  = "failed_checkins"
	FeatureMissingGeoCount = "missing_geo_count"
	FeatureTxCount         = "tx_count"
	FeatureCheckInCount    = "checkin_count"
	FeatureLocationCount   = "location_count"
)

// FeaturesFromEvidence derives the scalar features rule expressions are
// evaluated against. Deriving once per run keeps expressions cheap and
// the evaluation a pure function of the evidence.
func FeaturesFromEvidence(ev *domain.Evidence) map[string]any {
	var oddHour, missingGeo int64
	devices := make(map[string]struct{})
	ips := make(map[string]struct{})

	for _, tx := range ev.Transactions {
		// Odd hour: 23:00 through 04:59 local time.
		h := tx.TransactionDate.Hour()
		if h >= 23 || h < 5 {
			oddHour++
		}
		if tx.Latitude == nil || tx.Longitude == nil {
			missingGeo++
		}
		if tx.DeviceID != "" {
			devices[tx.DeviceID] = struct{}{}
		}
		if tx.IPAddress != "" {
			ips[tx.IPAddress] = struct{}{}
		}
	}

	var failedCheckIns int64
	for _, c := range ev.CheckIns {
		if c.Status == domain.CheckInFailed {
			failedCheckIns++
		}
	}

	return map[string]any{
		FeatureOddHourCount:    oddHour,
		FeatureDistinctDevices: int64(len(devices)),
		FeatureDistinctIPs:     int64(len(ips)),
		FeatureFailedCheckIns:  failedCheckIns,
		FeatureMissingGeoCount: missingGeo,
		FeatureTxCount:         int64(len(ev.Transactions)),
		FeatureCheckInCount:    int64(len(ev.CheckIns)),
		FeatureLocationCount:   int64(len(ev.LocationLogs)),
	}
}
