package model

// FeatureVector holds the indicator values for a single bar.
type FeatureVector struct {
	Close         float64 `json:"close"`
	Returns       float64 `json:"returns"`
	LogReturns    float64 `json:"log_returns"`
	RollingStd20  float64 `json:"rolling_std_20"`
	RollingStd50  float64 `json:"rolling_std_50"`
	VolumeRatio   float64 `json:"volume_ma_ratio"`
	RSI           float64 `json:"rsi"`
	RSIDivergence float64 `json:"rsi_divergence"`
	Mom14         float64 `json:"mom_14"`
	Mom30         float64 `json:"mom_30"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDDiff      float64 `json:"macd_diff"`
	BBWidth       float64 `json:"bb_width"`
	BBPosition    float64 `json:"bb_position"`
	SMA20         float64 `json:"sma_20"`
	SMA50         float64 `json:"sma_50"`
	SMARatio      float64 `json:"sma_20_50_ratio"`
	ATR           float64 `json:"atr"`
	ADX           float64 `json:"adx"`
	ADXPos        float64 `json:"adx_pos"`
	ADXNeg        float64 `json:"adx_neg"`
}

// Values flattens the vector in model input order. Close is excluded.
func (f FeatureVector) Values() []float64 {
	return []float64{
		f.Returns, f.LogReturns, f.RollingStd20, f.RollingStd50, f.VolumeRatio,
		f.RSI, f.RSIDivergence, f.Mom14, f.Mom30,
		f.MACD, f.MACDSignal, f.MACDDiff, f.BBWidth, f.BBPosition,
		f.SMA20, f.SMA50, f.SMARatio, f.ATR, f.ADX, f.ADXPos, f.ADXNeg,
	}
}

// FeatureCount is the length of FeatureVector.Values.
const FeatureCount = 21
