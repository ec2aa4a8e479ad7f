package metrics

import (
	"fmt"
	"io"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/claimdesk/claimdesk/server/internal/kpi"
)

const namespace = "claimdesk_"

// Gauges are point-in-time values that do not come from processed records.
type Gauges struct {
	AlertsFiring       int
	InspectionsPending int
	AgenticAvailable   bool
}

// Families converts the KPI summary and gauges into metric families,
// sorted by name.
func Families(s kpi.Summary, g Gauges) []*dto.MetricFamily {
	fams := []*dto.MetricFamily{
		counter("claims_processed_total", "Claims processed since start.", float64(s.TotalClaims)),
		gauge("processing_time_ms_avg", "Average pipeline run time in milliseconds.", s.AvgProcessingMS),
		gauge("fraud_referral_rate", "Percentage of claims referred to SIU.", s.FraudReferralRate),
		gauge("coverage_approval_rate", "Percentage of claims recommended for coverage.", s.CoverageApprovalRate),
		gauge("total_loss_rate", "Percentage of claims settled as total loss.", s.TotalLossRate),
		counter("manual_overrides_total", "Adjuster overrides applied.", float64(s.ManualOverrides)),
		counter("subrogation_referrals_total", "Claims with a subrogation recommendation.", float64(s.SubrogationReferrals)),
		gauge("recommended_payout_total", "Sum of recommended payouts in dollars.", s.TotalPayout),
		gauge("alerts_firing", "Alerts currently firing.", float64(g.AlertsFiring)),
		gauge("inspections_pending", "Inspections waiting for an appraiser.", float64(g.InspectionsPending)),
		gauge("agentic_available", "1 when an LLM pipeline is configured.", boolValue(g.AgenticAvailable)),
	}

	byPriority := labeled("claims_by_priority", "Processed claims per triage priority.", dto.MetricType_GAUGE)
	sla := labeled("sla_hours_avg", "Average target SLA hours per triage priority.", dto.MetricType_GAUGE)
	for _, p := range sortedKeys(s.ByPriority) {
		st := s.ByPriority[p]
		byPriority.Metric = append(byPriority.Metric, gaugeMetric(float64(st.Count), "priority", p))
		sla.Metric = append(sla.Metric, gaugeMetric(st.AvgSLAHours, "priority", p))
	}
	byMode := labeled("claims_by_mode", "Processed claims per pipeline mode.", dto.MetricType_GAUGE)
	for _, m := range sortedKeys(s.ByMode) {
		byMode.Metric = append(byMode.Metric, gaugeMetric(float64(s.ByMode[m]), "mode", m))
	}
	for _, f := range []*dto.MetricFamily{byPriority, sla, byMode} {
		if len(f.Metric) > 0 {
			fams = append(fams, f)
		}
	}

	sort.Slice(fams, func(i, j int) bool { return fams[i].GetName() < fams[j].GetName() })
	return fams
}

// Write encodes families in the text exposition format.
func Write(w io.Writer, fams []*dto.MetricFamily) error {
	for _, mf := range fams {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// ContentType is the Content-Type header for Write's output.
func ContentType() string {
	return string(expfmt.NewFormat(expfmt.TypeTextPlain))
}

// --- helpers ---

func counter(name, help string, v float64) *dto.MetricFamily {
	f := labeled(name, help, dto.MetricType_COUNTER)
	f.Metric = []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(v)}}}
	return f
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	f := labeled(name, help, dto.MetricType_GAUGE)
	f.Metric = []*dto.Metric{gaugeMetric(v)}
	return f
}

func labeled(name, help string, t dto.MetricType) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(namespace + name),
		Help: proto.String(help),
		Type: t.Enum(),
	}
}

// gaugeMetric builds a gauge sample; labels are name/value pairs.
func gaugeMetric(v float64, labels ...string) *dto.Metric {
	m := &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(v)}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &dto.LabelPair{
			Name:  proto.String(labels[i]),
			Value: proto.String(labels[i+1]),
		})
	}
	return m
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
