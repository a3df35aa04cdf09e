package heatmap

import "gonum.org/v1/gonum/stat"

// ベースライン追跡のEMA係数。
// 値が小さいほど応答が遅くなり、一時的なタッチの影響を受けにくくなる。
// 約100Hzのフレームレートで0.005はおよそ200フレーム（約2秒）の平滑化に相当する。
const EmaAlpha = 0.005

// ドリフト速度を測る窓のフレーム数（約100Hzで約5秒分）
const DriftWindow = 500

// キャリブレーション中と判定するドリフト速度のしきい値（平滑平均の変化量/フレーム）
const DriftThreshold = 0.02

// DriftSample は1フレーム分のドリフト検出結果
type DriftSample struct {
	Mean         float64 // フレームの生平均
	SmoothedMean float64 // EMAベースライン
	DriftRate    float64 // ベースラインの変化量/フレーム
	Calibrating  bool    // ファームウェアのキャリブレーション中と推定
	Started      bool    // このフレームでCalibratingが立ち上がった
	Stopped      bool    // このフレームでCalibratingが立ち下がった
}

// DriftDetector はフレーム平均のストリームからベースラインと
// ドリフト速度を推定するフィルタ。取得ループのスレッドのみが更新する。
type DriftDetector struct {
	alpha       float64
	window      int
	threshold   float64
	ema         float64
	initialized bool
	history     []float64
	wasCalib    bool
}

// NewDriftDetector は既定のパラメータでドリフト検出器を作成する
func NewDriftDetector() *DriftDetector {
	return &DriftDetector{
		alpha:     EmaAlpha,
		window:    DriftWindow,
		threshold: DriftThreshold,
	}
}

// FrameMean はフレームの全サンプルの平均を求める
func FrameMean(data []int16) float64 {
	if len(data) == 0 {
		return 0
	}
	vals := make([]float64, len(data))
	for i, v := range data {
		vals[i] = float64(v)
	}
	return stat.Mean(vals, nil)
}

// Update は新しいフレーム平均を取り込み、検出結果を返す
func (d *DriftDetector) Update(mean float64) DriftSample {
	// 初回フレームはそのままベースラインになる
	if !d.initialized {
		d.ema = mean
		d.initialized = true
	} else {
		d.ema += d.alpha * (mean - d.ema)
	}

	if len(d.history) >= d.window {
		d.history = d.history[1:]
	}
	d.history = append(d.history, d.ema)

	var driftRate float64
	if len(d.history) >= 2 {
		oldest := d.history[0]
		driftRate = (d.ema - oldest) / float64(len(d.history))
	}

	calibrating := len(d.history) >= d.window &&
		(driftRate > d.threshold || driftRate < -d.threshold)

	sample := DriftSample{
		Mean:         mean,
		SmoothedMean: d.ema,
		DriftRate:    driftRate,
		Calibrating:  calibrating,
		Started:      calibrating && !d.wasCalib,
		Stopped:      !calibrating && d.wasCalib,
	}
	d.wasCalib = calibrating

	return sample
}

// Reset は検出器の状態を初期化する
func (d *DriftDetector) Reset() {
	d.ema = 0
	d.initialized = false
	d.history = nil
	d.wasCalib = false
}
