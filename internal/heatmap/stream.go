package heatmap

import (
	"fmt"
	"log"
	"time"

	"github.com/JohnAZoidberg/tapview/internal/hid"
)

// HeatmapFrame は1回の取得で得られる静電容量スナップショット。
// 生成後は変更されず、チャネル経由で消費側へ受け渡される。
type HeatmapFrame struct {
	Rows int     `json:"rows"`
	Cols int     `json:"cols"`
	Data []int16 `json:"data"` // 行優先の符号付き16bit値（Rows*Cols個）

	Mean         float64 `json:"mean"`
	SmoothedMean float64 `json:"smoothed_mean"`
	DriftRate    float64 `json:"drift_rate"`
	Calibrating  bool    `json:"calibrating"`
}

// AlcCommand は取得ループへ非同期に送るALC制御コマンド
type AlcCommand int

const (
	AlcReset AlcCommand = iota
	AlcEnable
	AlcDisable
)

func (c AlcCommand) String() string {
	switch c {
	case AlcReset:
		return "reset"
	case AlcEnable:
		return "enable"
	case AlcDisable:
		return "disable"
	}
	return fmt.Sprintf("AlcCommand(%d)", int(c))
}

// StreamConfig は取得ループの設定
type StreamConfig struct {
	BurstLen     int          // バーストレポートのペイロード長
	ColsOverride int          // 表示用の列数（0ならハードウェアの値を使う）
	Alc          *AlcAccessor // nilならチップ系列の既定アクセサを使う
	Verbose      bool
}

// Stream はヒートマップ取得ループの本体。チップを同定し、寸法を読み、
// stopが閉じられるかI/Oエラーが起きるまでフレームを送り続ける。
// framesはループ終了時に必ず閉じられる。
func Stream(dev hid.Device, cfg StreamConfig, frames chan<- HeatmapFrame, cmds <-chan AlcCommand, stop <-chan struct{}) error {
	defer close(frames)

	chip, err := IdentifyChip(dev)
	if err != nil {
		return fmt.Errorf("チップの同定に失敗しました: %w", err)
	}

	rows, cols, err := ReadMatrixDims(dev, chip)
	if err != nil {
		return fmt.Errorf("マトリクス寸法の読み出しに失敗しました: %w", err)
	}
	if rows*cols == 0 {
		return fmt.Errorf("マトリクス寸法が不正です: %dx%d", rows, cols)
	}

	log.Printf("heatmap: %vを検出しました: %dx%dマトリクス, burst_len=%d", chip, rows, cols, cfg.BurstLen)

	// 未知の個体向けに候補レジスタをダンプする
	if chip == ChipPJP343 && cfg.Verbose {
		probeDimensionRegisters(dev)
	}

	// 表示用の列数はハードウェア報告値とは独立に上書きできる
	displayCols := cols
	if cfg.ColsOverride > 0 {
		displayCols = cfg.ColsOverride
		log.Printf("heatmap: 表示列数を%dに上書きしました", displayCols)
	}

	alc := DefaultAlcAccessor(chip)
	if cfg.Alc != nil {
		alc = *cfg.Alc
	}

	if enabled, err := alc.IsEnabled(dev); err != nil {
		log.Printf("heatmap: ALC状態の読み出しに失敗しました: %v", err)
	} else if enabled {
		log.Println("heatmap: ALCは有効です")
	} else {
		log.Println("heatmap: ALCは無効です")
	}

	detector := NewDriftDetector()
	startTime := time.Now()
	var frameCount uint64

	for {
		// 保留中のALCコマンドをすべて処理してからフレームを読む。
		// 書き込み失敗はログに残すだけでループは続行する
		drainAlcCommands(dev, alc, cmds, startTime)

		// ハードウェア読み出しは常にレジスタ由来の寸法で行う
		data, err := ReadFrame(dev, chip, rows, cols, cfg.BurstLen)
		if err != nil {
			return fmt.Errorf("フレームの読み出しに失敗しました: %w", err)
		}
		frameCount++

		sample := detector.Update(FrameMean(data))

		elapsed := time.Since(startTime).Seconds()
		if sample.Started {
			log.Printf("heatmap: キャリブレーション開始 %.1fs (フレーム%d): drift_rate=%.4f/frame, smoothed_mean=%.1f",
				elapsed, frameCount, sample.DriftRate, sample.SmoothedMean)
		} else if sample.Stopped {
			log.Printf("heatmap: キャリブレーション終了 %.1fs (フレーム%d): drift_rate=%.4f/frame, smoothed_mean=%.1f",
				elapsed, frameCount, sample.DriftRate, sample.SmoothedMean)
		}

		frame := HeatmapFrame{
			Rows:         len(data) / displayCols,
			Cols:         displayCols,
			Data:         data,
			Mean:         sample.Mean,
			SmoothedMean: sample.SmoothedMean,
			DriftRate:    sample.DriftRate,
			Calibrating:  sample.Calibrating,
		}

		select {
		case frames <- frame:
		case <-stop:
			return nil
		}
	}
}

// drainAlcCommands はキューに溜まったALCコマンドを全件消化する
func drainAlcCommands(dev hid.Device, alc AlcAccessor, cmds <-chan AlcCommand, startTime time.Time) {
	for {
		select {
		case cmd, ok := <-cmds:
			if !ok {
				return
			}
			elapsed := time.Since(startTime).Seconds()
			log.Printf("heatmap: ALC %v (%.1fs)", cmd, elapsed)
			var err error
			switch cmd {
			case AlcReset:
				err = alc.Reset(dev)
			case AlcEnable:
				err = alc.Enable(dev)
			case AlcDisable:
				err = alc.Disable(dev)
			}
			if err != nil {
				log.Printf("heatmap: ALC %vに失敗しました: %v", cmd, err)
			}
		default:
			return
		}
	}
}

// probeDimensionRegisters は寸法レジスタの候補をログへダンプする
func probeDimensionRegisters(dev hid.Device) {
	log.Println("heatmap: --- PJP343レジスタプローブ ---")

	if s, err1 := readUserReg(dev, 0, 0x6E); err1 == nil {
		if d, err2 := readUserReg(dev, 0, 0x6F); err2 == nil {
			log.Printf("  UserBank0 0x6E=%d 0x6F=%d", s, d)
		}
	}
	if s, err1 := readUserReg(dev, 0, 0x59); err1 == nil {
		if d, err2 := readUserReg(dev, 0, 0x5A); err2 == nil {
			log.Printf("  UserBank0 0x59=%d 0x5A=%d", s, d)
		}
	}
	if d, err1 := readReg(dev, 9, 0x01); err1 == nil {
		if s, err2 := readReg(dev, 9, 0x02); err2 == nil {
			log.Printf("  Bank9 0x01=%d 0x02=%d", d, s)
		}
	}

	log.Println("heatmap: --- プローブ終了 ---")
}
