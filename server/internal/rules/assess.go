package rules

// Appraisal recommendations.
const (
	RecommendRepair    = "Repair"
	RecommendTotalLoss = "Total Loss"
)

// Assessment is the repair-versus-total-loss call for a physical appraisal.
type Assessment struct {
	Recommendation string  `json:"recommendation"`
	VehicleValue   float64 `json:"vehicle_value"`
	Threshold      float64 `json:"total_loss_threshold"`
	Ratio          float64 `json:"ratio"`
}

// Assess compares an appraised repair cost against the vehicle value. An
// unknown (zero) value is replaced by the configured default.
func (r *Rules) Assess(cost, vehicleValue float64) Assessment {
	if vehicleValue <= 0 {
		vehicleValue = r.cfg.DefaultVehicleValue
	}
	a := Assessment{
		Recommendation: RecommendRepair,
		VehicleValue:   vehicleValue,
		Threshold:      vehicleValue * r.cfg.TotalLossRatio,
	}
	if vehicleValue > 0 {
		a.Ratio = cost / vehicleValue
	}
	if cost >= a.Threshold {
		a.Recommendation = RecommendTotalLoss
	}
	return a
}
