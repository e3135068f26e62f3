package models

import "time"

type PriceDiffAnomaly struct {
	Date        string             `json:"date"`
	DiffPercent float64            `json:"diffPercent"`
	Prices      map[string]float64 `json:"prices"`
}

type VolumeSpikeAnomaly struct {
	Date          string  `json:"date"`
	Exchange      string  `json:"exchange"`
	Volume        float64 `json:"volume"`
	NeighborAvg   float64 `json:"neighborAvg"`
	ChangePercent float64 `json:"changePercent"`
}

type MissingDataAnomaly struct {
	Date      string   `json:"date"`
	Exchanges []string `json:"exchanges"`
	Reason    string   `json:"reason"` // "incomplete" or "inconsistent"
}

type PriceGapAnomaly struct {
	Date       string  `json:"date"`
	Exchange   string  `json:"exchange"`
	PrevClose  float64 `json:"prevClose"`
	Close      float64 `json:"close"`
	GapPercent float64 `json:"gapPercent"`
}

const (
	MissingReasonIncomplete   = "incomplete"
	MissingReasonInconsistent = "inconsistent"
)

// AnomalyReport collects every flag raised by the validator.
type AnomalyReport struct {
	PriceDiff    []PriceDiffAnomaly   `json:"priceDiff"`
	VolumeSpikes []VolumeSpikeAnomaly `json:"volumeSpikes"`
	DataMissing  []MissingDataAnomaly `json:"dataMissing"`
	PriceGaps    []PriceGapAnomaly    `json:"priceGaps"`
}

func NewAnomalyReport() AnomalyReport {
	return AnomalyReport{
		PriceDiff:    []PriceDiffAnomaly{},
		VolumeSpikes: []VolumeSpikeAnomaly{},
		DataMissing:  []MissingDataAnomaly{},
		PriceGaps:    []PriceGapAnomaly{},
	}
}

func (r AnomalyReport) Total() int {
	return len(r.PriceDiff) + len(r.VolumeSpikes) + len(r.DataMissing) + len(r.PriceGaps)
}

// Counts returns the number of anomalies keyed by kind.
func (r AnomalyReport) Counts() map[string]int {
	return map[string]int{
		"price_diff":   len(r.PriceDiff),
		"volume_spike": len(r.VolumeSpikes),
		"data_missing": len(r.DataMissing),
		"price_gap":    len(r.PriceGaps),
	}
}

type ValidationStats struct {
	TotalDays        int            `json:"totalDays"`
	ValidDays        int            `json:"validDays"`
	ExchangeCoverage map[string]int `json:"exchangeCoverage"`
}

type ValidationResult struct {
	Valid     Series          `json:"validData"`
	Anomalies AnomalyReport   `json:"anomalies"`
	Stats     ValidationStats `json:"stats"`
}

// ContinuityGap is a run of calendar days missing from one exchange's history.
type ContinuityGap struct {
	Exchange    string `json:"exchange"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	MissingDays int    `json:"missingDays"`
}

type VolumeOutlier struct {
	Exchange string  `json:"exchange"`
	Date     string  `json:"date"`
	Volume   float64 `json:"volume"`
	ZScore   float64 `json:"zScore"`
}

type ExchangeCoverage struct {
	FirstDate string `json:"firstDate"`
	LastDate  string `json:"lastDate"`
	Days      int    `json:"days"`
}

type AuditReport struct {
	GeneratedAt    time.Time                   `json:"generatedAt"`
	Coverage       map[string]ExchangeCoverage `json:"coverage"`
	Gaps           []ContinuityGap             `json:"gaps"`
	VolumeOutliers []VolumeOutlier             `json:"volumeOutliers"`
}
