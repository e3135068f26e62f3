package regime

import "BTCPulse/internal/domain/models"

// DefaultLabeledPeriods are the hand-curated BTC regimes used for training.
func DefaultLabeledPeriods() []models.LabeledPeriod {
	return []models.LabeledPeriod{
		{Start: "2017-08-17", End: "2017-11-12", Regime: models.RegimeSideways},
		{Start: "2017-11-13", End: "2017-12-17", Regime: models.RegimeUptrend},
		{Start: "2017-12-18", End: "2018-02-06", Regime: models.RegimeDowntrend},
		{Start: "2018-02-07", End: "2020-12-15", Regime: models.RegimeSideways},
		{Start: "2020-12-16", End: "2021-04-14", Regime: models.RegimeUptrend},
		{Start: "2021-04-15", End: "2021-07-21", Regime: models.RegimeDowntrend},
		{Start: "2021-07-22", End: "2021-11-08", Regime: models.RegimeUptrend},
		{Start: "2021-11-09", End: "2022-06-18", Regime: models.RegimeDowntrend},
		{Start: "2022-06-19", End: "2023-10-16", Regime: models.RegimeSideways},
		{Start: "2023-10-17", End: "2024-03-14", Regime: models.RegimeUptrend},
		{Start: "2024-03-15", End: "2024-11-06", Regime: models.RegimeSideways},
		{Start: "2024-11-07", End: "2024-12-20", Regime: models.RegimeUptrend},
	}
}
