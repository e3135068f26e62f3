package models

type Extreme struct {
	Value    float64 `json:"value"`
	Date     string  `json:"date"`
	Exchange string  `json:"exchange"`
}

type PriceStats struct {
	Highest    Extreme            `json:"highest"`
	Lowest     Extreme            `json:"lowest"`
	Averages   map[string]float64 `json:"averages"`
	Volatility map[string]float64 `json:"volatility"`
}

type VolumeStats struct {
	Highest     Extreme            `json:"highest"`
	Daily       map[string]float64 `json:"daily"`
	Total       map[string]float64 `json:"total"`
	MarketShare map[string]float64 `json:"marketShare"`
}

type TrendStats struct {
	UpDays        map[string]int `json:"upDays"`
	DownDays      map[string]int `json:"downDays"`
	FlatDays      map[string]int `json:"flatDays"`
	MaxUpStreak   map[string]int `json:"maxUpStreak"`
	MaxDownStreak map[string]int `json:"maxDownStreak"`
}

type BucketStats struct {
	AvgPrice    float64 `json:"avgPrice"`
	TotalVolume float64 `json:"totalVolume"`
}

type TimeStats struct {
	ByYear    map[string]BucketStats `json:"byYear"`
	ByMonth   map[string]BucketStats `json:"byMonth"`
	ByWeekday map[string]BucketStats `json:"byWeekday"`
}

// Analysis is the descriptive summary of a merged series.
type Analysis struct {
	Days      int         `json:"days"`
	FirstDate string      `json:"firstDate"`
	LastDate  string      `json:"lastDate"`
	Price     PriceStats  `json:"price"`
	Volume    VolumeStats `json:"volume"`
	Trends    TrendStats  `json:"trends"`
	TimeStats TimeStats   `json:"timeStats"`
}

type TrendsCount struct {
	Uptrend   int `json:"uptrend"`
	Downtrend int `json:"downtrend"`
	Sideways  int `json:"sideways"`
}

// PeriodStats summarises one exchange over a trailing period.
type PeriodStats struct {
	Exchange    string      `json:"exchange"`
	Period      string      `json:"period"`
	Days        int         `json:"days"`
	Highest     float64     `json:"highest"`
	Lowest      float64     `json:"lowest"`
	Average     float64     `json:"average"`
	Volatility  float64     `json:"volatility"`
	VolumeAvg   float64     `json:"volumeAvg"`
	TrendsCount TrendsCount `json:"trendsCount"`
}

type ExchangeQuote struct {
	Price       float64 `json:"price"`
	Volume      float64 `json:"volume"`
	MarketShare float64 `json:"marketShare"`
}

// Comparison is the cross-exchange view of a single day.
type Comparison struct {
	Date           string                   `json:"date"`
	Comparisons    map[string]ExchangeQuote `json:"comparisons"`
	PriceDeviation float64                  `json:"priceDeviation"`
	VolumeTotal    float64                  `json:"volumeTotal"`
}
